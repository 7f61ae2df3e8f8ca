// Package engine drives a student through an adaptive, voice-answered
// assignment.
//
// An Engine has a single owner: all methods must be called from one goroutine
// (or otherwise serialized by the caller). Observers receive a Snapshot after
// every state change via Subscribe.
package engine

import (
	"context"
	"log/slog"

	"github.com/pavelanni/voicetutor/internal/model"
	"github.com/pavelanni/voicetutor/internal/notify"
)

// Snapshot is a read-only view of the engine state.
type Snapshot struct {
	Questions   []model.Question
	Cursor      int
	State       NavState
	Statistics  *model.ProgressStatistics
	Audio       model.AudioRecording
	LastOutcome *model.AnswerOutcome
	Completed   bool
	Err         error
}

// Current returns the question under the cursor.
func (s Snapshot) Current() (model.Question, bool) {
	if len(s.Questions) == 0 {
		return model.Question{}, false
	}
	return s.Questions[s.Cursor], true
}

// Engine coordinates navigation, answer submission, statistics and audio
// capture for one personal assignment flow.
type Engine struct {
	repo      Repository
	log       *slog.Logger
	nav       *Navigator
	stats     *Reconciler
	audio     *AudioSession
	outcome   *model.AnswerOutcome
	completed bool
	err       error
	hub       notify.Hub[Snapshot]
	closed    bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine in the empty state with an idle audio session.
func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{repo: repo, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.stats = NewReconciler(repo)
	e.stats.notify = e.publish
	e.nav = NewNavigator(repo, e.stats, e.log)
	e.nav.notify = e.publish
	e.audio = newAudioSession(e.publish)
	return e
}

// Close drops all subscribers. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.closed = true
	e.hub.Close()
}

// Subscribe registers fn to receive a snapshot after every change.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return e.hub.Subscribe(fn)
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Questions:   e.nav.Questions(),
		Cursor:      e.nav.Cursor(),
		State:       e.nav.State(),
		Audio:       e.audio.State(),
		LastOutcome: e.outcome,
		Completed:   e.completed,
		Err:         e.err,
	}
	if st, ok := e.stats.Current(); ok {
		s.Statistics = &st
	}
	return s
}

// Audio returns the recording session of this flow.
func (e *Engine) Audio() *AudioSession { return e.audio }

// Navigator exposes the question sequence.
func (e *Engine) Navigator() *Navigator { return e.nav }

// Statistics returns the held server statistics, if any.
func (e *Engine) Statistics() (model.ProgressStatistics, bool) {
	return e.stats.Current()
}

// CurrentQuestion returns the question under the cursor.
func (e *Engine) CurrentQuestion() (model.Question, bool) {
	return e.nav.Current()
}

// LastOutcome returns the outcome of the last successful submission.
func (e *Engine) LastOutcome() (model.AnswerOutcome, bool) {
	if e.outcome == nil {
		return model.AnswerOutcome{}, false
	}
	return *e.outcome, true
}

// Completed reports whether the assignment has been finalized.
func (e *Engine) Completed() bool { return e.completed }

// LastError returns the most recent error. It stays set until ClearError or
// the next error replaces it.
func (e *Engine) LastError() error { return e.err }

// ClearError clears the sticky error.
func (e *Engine) ClearError() {
	if e.err == nil {
		return
	}
	e.err = nil
	e.publish()
}

// LoadAllQuestions loads the base questions and seeds the sequence.
func (e *Engine) LoadAllQuestions(ctx context.Context, personalAssignmentID int64) error {
	return e.record(e.nav.LoadAllQuestions(ctx, personalAssignmentID))
}

// JumpToNumber moves to the question numbered target; see Navigator.JumpToNumber.
func (e *Engine) JumpToNumber(ctx context.Context, target string, personalAssignmentID int64) error {
	return e.record(e.nav.JumpToNumber(ctx, target, personalAssignmentID))
}

// FetchNextQuestion asks the server for the next question and makes it current.
func (e *Engine) FetchNextQuestion(ctx context.Context, personalAssignmentID int64) error {
	return e.record(e.nav.FetchNext(ctx, personalAssignmentID))
}

// Advance moves to the next question in the sequence.
func (e *Engine) Advance() { e.nav.Advance() }

// Retreat moves to the previous question in the sequence.
func (e *Engine) Retreat() { e.nav.Retreat() }

// RefreshStatistics re-fetches the server statistics.
func (e *Engine) RefreshStatistics(ctx context.Context, personalAssignmentID int64) error {
	_, err := e.stats.Refresh(ctx, personalAssignmentID)
	return e.record(err)
}

// RefreshStatisticsFor re-fetches statistics knowing only student and assignment.
func (e *Engine) RefreshStatisticsFor(ctx context.Context, studentID, assignmentID int64) error {
	_, err := e.stats.RefreshFor(ctx, studentID, assignmentID)
	return e.record(err)
}

// FindPersonalAssignment returns the student's attempt at assignmentID.
func (e *Engine) FindPersonalAssignment(ctx context.Context, studentID, assignmentID int64) (model.PersonalAssignment, error) {
	pa, err := e.stats.Lookup(ctx, studentID, assignmentID)
	return pa, e.record(err)
}

// SubmitAnswer sends an answer recording. A tail question in the outcome is
// appended to the sequence before statistics are refreshed. The server alone
// decides whether a tail question exists.
//
// A failed statistics refresh after a successful submission does not fail the
// submission; it is recorded as the engine's last error.
func (e *Engine) SubmitAnswer(ctx context.Context, personalAssignmentID, studentID, questionID int64, audioPath string) (model.AnswerOutcome, error) {
	if cur, ok := e.nav.Current(); ok && cur.ID != questionID {
		e.log.Debug("submitting answer for a question other than the current one",
			"question_id", questionID, "current_id", cur.ID)
	}

	outcome, err := e.repo.SubmitAnswer(ctx, personalAssignmentID, studentID, questionID, audioPath)
	if err != nil {
		return model.AnswerOutcome{}, e.record(repositoryError(err))
	}
	e.outcome = &outcome
	e.log.Info("answer submitted",
		"personal_assignment_id", personalAssignmentID,
		"question_id", questionID,
		"correct", outcome.IsCorrect,
		"tail", outcome.TailQuestion != nil,
	)

	if outcome.TailQuestion != nil {
		e.nav.AppendTail(*outcome.TailQuestion)
	} else {
		e.publish()
	}

	if _, err := e.stats.Refresh(ctx, personalAssignmentID); err != nil {
		e.log.Warn("statistics refresh after submission failed", "personal_assignment_id", personalAssignmentID, "error", err)
		e.record(err)
	}
	return outcome, nil
}

// SubmitRecordedAnswer submits the artifact of the audio session for the
// current question and resets the session on success.
func (e *Engine) SubmitRecordedAnswer(ctx context.Context, personalAssignmentID, studentID int64) (model.AnswerOutcome, error) {
	rec := e.audio.State()
	if !rec.HasArtifact() {
		return model.AnswerOutcome{}, e.record(&Error{Kind: KindNotFound, MessageID: MsgNoRecordedAnswer})
	}
	q, ok := e.nav.Current()
	if !ok {
		return model.AnswerOutcome{}, e.record(&Error{Kind: KindNotFound, Err: model.ErrNotFound})
	}
	outcome, err := e.SubmitAnswer(ctx, personalAssignmentID, studentID, q.ID, rec.ArtifactPath)
	if err != nil {
		return outcome, err
	}
	e.audio.Reset()
	return outcome, nil
}

// CompleteAssignment finalizes the attempt and clears the sequence.
func (e *Engine) CompleteAssignment(ctx context.Context, personalAssignmentID int64) error {
	if err := e.repo.CompletePersonalAssignment(ctx, personalAssignmentID); err != nil {
		return e.record(repositoryError(err))
	}
	e.completed = true
	e.nav.Complete()
	e.log.Info("assignment completed", "personal_assignment_id", personalAssignmentID)
	return nil
}

// record stores err as the sticky error and returns it unchanged.
func (e *Engine) record(err error) error {
	if err == nil {
		return nil
	}
	e.err = err
	e.publish()
	return err
}

func (e *Engine) publish() {
	if e.closed || e.hub.Len() == 0 {
		return
	}
	e.hub.Publish(e.Snapshot())
}
