// Package upload runs the three-stage assignment creation pipeline: create
// the assignment record, upload its PDF material, then ask the server to
// generate questions from it.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	appI18n "github.com/pavelanni/voicetutor/internal/i18n"
	"github.com/pavelanni/voicetutor/internal/model"
	"github.com/pavelanni/voicetutor/internal/notify"
)

// Progress values reported after each completed stage.
const (
	ProgressStarted   = 0.0
	ProgressUploaded  = 0.3
	ProgressGenerated = 1.0
)

// ErrPipelineBusy is returned by Run while another run is active.
var ErrPipelineBusy = errors.New("upload pipeline is already running")

// Message returns the localized text for an error returned by Run.
func Message(ctx context.Context, err error) string {
	var stageErr *StageError
	switch {
	case errors.As(err, &stageErr):
		return stageErr.Message(ctx)
	case errors.Is(err, ErrPipelineBusy):
		return appI18n.T(ctx, "PipelineBusy")
	}
	return err.Error()
}

// Repository is the instructor-side backend used by the pipeline.
type Repository interface {
	CreateAssignment(ctx context.Context, req model.CreateAssignmentRequest) (model.CreatedAssignment, error)
	// UploadBinary stores the file at filePath under uploadURL.
	UploadBinary(ctx context.Context, uploadURL, filePath string) error
	CreateQuestionsAfterUpload(ctx context.Context, assignmentID int64, materialID string, totalNumber int) error
	CheckUploadStatus(ctx context.Context, assignmentID int64) (model.UploadStatus, error)
	Assignments(ctx context.Context) ([]model.Assignment, error)
}

// Pipeline drives assignment creation. State and Subscribe may be used from
// any goroutine; observers run on the goroutine calling Run.
type Pipeline struct {
	repo Repository
	log  *slog.Logger

	mu          sync.Mutex
	running     bool
	state       model.UploadState
	assignments []model.Assignment

	hub notify.Hub[model.UploadState]
}

// New creates an idle pipeline. A nil logger means slog.Default().
func New(repo Repository, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{repo: repo, log: log}
}

// Run executes the three stages in order. totalNumber is passed to question
// generation as is, regardless of len(req.Questions). Any failure stops the
// pipeline with a *StageError and leaves Progress where it was.
func (p *Pipeline) Run(ctx context.Context, req model.CreateAssignmentRequest, filePath string, totalNumber int) (model.CreatedAssignment, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return model.CreatedAssignment{}, ErrPipelineBusy
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.set(model.UploadState{Progress: ProgressStarted, IsUploading: true})

	created, err := p.repo.CreateAssignment(ctx, req)
	if err != nil {
		return model.CreatedAssignment{}, p.fail(StageCreate, err)
	}
	p.log.Info("assignment created", "assignment_id", created.AssignmentID, "material_id", created.MaterialID)

	if err := p.repo.UploadBinary(ctx, created.UploadURL, filePath); err != nil {
		return created, p.fail(StageUpload, err)
	}
	p.set(model.UploadState{Progress: ProgressUploaded, IsUploading: true})
	p.log.Info("material uploaded", "assignment_id", created.AssignmentID, "file", filePath)

	if err := p.repo.CreateQuestionsAfterUpload(ctx, created.AssignmentID, created.MaterialID, totalNumber); err != nil {
		return created, p.fail(StageGenerate, err)
	}

	if list, err := p.repo.Assignments(ctx); err != nil {
		p.log.Warn("refresh assignment list failed", "error", err)
	} else {
		p.mu.Lock()
		p.assignments = list
		p.mu.Unlock()
	}

	p.set(model.UploadState{Progress: ProgressGenerated, Succeeded: true})
	p.log.Info("questions generated", "assignment_id", created.AssignmentID, "total_number", totalNumber)
	return created, nil
}

// State returns the current upload state.
func (p *Pipeline) State() model.UploadState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Assignments returns the assignment list fetched after the last successful run.
func (p *Pipeline) Assignments() []model.Assignment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.Assignment(nil), p.assignments...)
}

// ResetUploadState returns the state to zero progress, not uploading, not
// succeeded.
func (p *Pipeline) ResetUploadState() {
	p.set(model.UploadState{})
}

// CheckUploadStatus reports the stored material of an assignment.
func (p *Pipeline) CheckUploadStatus(ctx context.Context, assignmentID int64) (model.UploadStatus, error) {
	return p.repo.CheckUploadStatus(ctx, assignmentID)
}

// Subscribe registers fn to receive every state change.
func (p *Pipeline) Subscribe(fn func(model.UploadState)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	unsub := p.hub.Subscribe(fn)
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		unsub()
	}
}

func (p *Pipeline) fail(stage Stage, err error) error {
	p.mu.Lock()
	st := p.state
	p.mu.Unlock()
	st.IsUploading = false
	p.set(st)
	p.log.Error("upload pipeline failed", "stage", stage.String(), "error", err)
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) set(st model.UploadState) {
	p.mu.Lock()
	p.state = st
	observers := p.hub.Subscribers()
	p.mu.Unlock()
	for _, fn := range observers {
		fn(st)
	}
}

// Stage identifies a pipeline stage.
type Stage int

const (
	StageCreate Stage = iota + 1
	StageUpload
	StageGenerate
)

func (s Stage) String() string {
	switch s {
	case StageCreate:
		return "create"
	case StageUpload:
		return "upload"
	case StageGenerate:
		return "generate"
	}
	return "unknown"
}

// UploadFailurePrefix starts the message of an upload stage failure.
const UploadFailurePrefix = "PDF 업로드 실패"

// StageError reports which stage stopped the pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Stage == StageUpload {
		return UploadFailurePrefix + ": " + e.Err.Error()
	}
	return e.Stage.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// Message returns the localized text for the failure.
func (e *StageError) Message(ctx context.Context) string {
	id := "CreateStageFailed"
	switch e.Stage {
	case StageUpload:
		id = "UploadStageFailed"
	case StageGenerate:
		id = "GenerateStageFailed"
	}
	return appI18n.Td(ctx, id, map[string]any{"Err": e.Err.Error()})
}
