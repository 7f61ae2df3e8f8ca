package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appI18n "github.com/pavelanni/voicetutor/internal/i18n"
	"github.com/pavelanni/voicetutor/internal/llm"
	"github.com/pavelanni/voicetutor/internal/model"
	"github.com/pavelanni/voicetutor/internal/pdftext"
	"github.com/pavelanni/voicetutor/internal/store"
)

const maxAudioBytes = 32 << 20

// Evaluator is the server-side intelligence behind answer grading and
// question generation.
type Evaluator interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	EvaluateAnswer(ctx context.Context, question model.Question, transcript string, canFollowup bool) (llm.Evaluation, error)
	GenerateQuestions(ctx context.Context, material string, count int) ([]model.QuestionDraft, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	llm      Evaluator
	config   model.ServerConfig
	validate *validator.Validate

	extractText func(data []byte) (string, error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithTextExtractor replaces the PDF text extraction used before question
// generation.
func WithTextExtractor(fn func(data []byte) (string, error)) Option {
	return func(h *Handler) { h.extractText = fn }
}

// New creates a new Handler.
func New(s *store.Store, l Evaluator, cfg model.ServerConfig, opts ...Option) (*Handler, error) {
	if cfg.AudioDir != "" {
		if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
			return nil, err
		}
	}
	h := &Handler{
		store:       s,
		llm:         l,
		config:      cfg,
		validate:    validator.New(),
		extractText: pdftext.Extract,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/personal-assignments", h.handleListPersonal)
		r.Route("/personal-assignments/{paID}", func(r chi.Router) {
			r.Get("/questions", h.handleQuestions)
			r.Get("/next-question", h.handleNextQuestion)
			r.Get("/statistics", h.handleStatistics)
			r.Post("/answers", h.handleSubmitAnswer)
			r.Post("/complete", h.handleComplete)
		})

		r.Get("/assignments", h.handleListAssignments)
		r.Post("/assignments", h.handleCreateAssignment)
		r.Get("/assignments/{assignmentID}/upload-status", h.handleUploadStatus)
		r.Post("/assignments/{assignmentID}/questions", h.handleGenerateQuestions)
		r.Post("/assignments/{assignmentID}/questions/import", h.handleImportQuestions)

		h.rosterRoutes(r)
	})

	r.Put("/storage/*", h.handleStoragePut)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := h.store.Ping(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleListPersonal(w http.ResponseWriter, r *http.Request) {
	studentID, err := queryInt(r, "student_id")
	if err != nil {
		h.badRequest(w, r, nil)
		return
	}
	assignmentID, err := queryInt(r, "assignment_id")
	if err != nil {
		h.badRequest(w, r, nil)
		return
	}
	list, err := h.store.PersonalAssignments(studentID, assignmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.PersonalAssignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	paID, ok := h.pathID(w, r, "paID")
	if !ok {
		return
	}
	qs, err := h.store.PersonalAssignmentQuestions(paID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if qs == nil {
		qs = []model.Question{}
	}
	writeJSON(w, http.StatusOK, qs)
}

func (h *Handler) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	paID, ok := h.pathID(w, r, "paID")
	if !ok {
		return
	}
	q, err := h.store.NextQuestion(paID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	paID, ok := h.pathID(w, r, "paID")
	if !ok {
		return
	}
	st, err := h.store.Statistics(paID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSubmitAnswer takes a multipart form with student_id, question_id and
// the recording in the audio field. The evaluator alone decides whether a
// follow-up question is added.
func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	paID, ok := h.pathID(w, r, "paID")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		h.badRequest(w, r, nil)
		return
	}
	studentID, err1 := strconv.ParseInt(r.FormValue("student_id"), 10, 64)
	questionID, err2 := strconv.ParseInt(r.FormValue("question_id"), 10, 64)
	if err1 != nil || err2 != nil {
		h.badRequest(w, r, nil)
		return
	}

	pa, err := h.store.GetPersonalAssignment(paID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if pa.StudentID != studentID {
		h.writeError(w, r, http.StatusNotFound, model.CodeNotFound, "RecordNotFound")
		return
	}
	if pa.Status == model.StatusSubmitted || pa.Status == model.StatusGraded {
		h.writeError(w, r, http.StatusConflict, model.CodeAlreadySubmitted, "AlreadySubmitted")
		return
	}

	seq, err := h.store.Sequence(paID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	idx := slices.IndexFunc(seq, func(q model.Question) bool { return q.ID == questionID })
	if idx < 0 {
		h.writeError(w, r, http.StatusNotFound, model.CodeNotFound, "RecordNotFound")
		return
	}
	question := seq[idx]

	audioPath, err := h.saveAudio(r, paID)
	if err != nil {
		slog.Error("failed to store answer audio", "personal_assignment_id", paID, "error", err)
		h.badRequest(w, r, nil)
		return
	}

	transcript, err := h.llm.Transcribe(r.Context(), audioPath)
	if err != nil {
		slog.Error("transcription failed", "personal_assignment_id", paID, "error", err)
		h.fail(w, r, err)
		return
	}

	base, tails, err := h.store.BaseOf(paID, questionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	canFollowup := tails < h.config.MaxFollowups

	eval, err := h.llm.EvaluateAnswer(r.Context(), question, transcript, canFollowup)
	if err != nil {
		slog.Error("LLM evaluation failed", "personal_assignment_id", paID, "question_id", questionID, "error", err)
		h.fail(w, r, err)
		return
	}

	if _, err := h.store.RecordAnswer(model.Answer{
		PersonalAssignmentID: paID,
		QuestionID:           questionID,
		Transcript:           transcript,
		IsCorrect:            eval.IsCorrect,
		Feedback:             eval.Feedback,
		AudioPath:            audioPath,
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	if pa.Status == model.StatusNotStarted {
		if err := h.store.UpdatePersonalStatus(paID, model.StatusInProgress); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	outcome := model.AnswerOutcome{
		IsCorrect:       eval.IsCorrect,
		ResultingNumber: question.Number,
		Feedback:        eval.Feedback,
	}
	if draft, ok := eval.Followup(); ok && canFollowup {
		tail, err := h.store.AddTailQuestion(paID, base.ID, draft)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		outcome.TailQuestion = &tail
	}

	slog.Info("answer evaluated",
		"personal_assignment_id", paID,
		"question", question.Number,
		"correct", outcome.IsCorrect,
		"tail", outcome.TailQuestion != nil,
	)
	writeJSON(w, http.StatusOK, model.SubmitAnswerResponse{Outcome: outcome, Transcript: transcript})
}

func (h *Handler) saveAudio(r *http.Request, paID int64) (string, error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", err
	}
	defer file.Close()

	dir := filepath.Join(h.config.AudioDir, "pa-"+strconv.FormatInt(paID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+filepath.Ext(header.Filename))
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	paID, ok := h.pathID(w, r, "paID")
	if !ok {
		return
	}
	status, err := h.store.CompletePersonalAssignment(paID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("personal assignment completed", "personal_assignment_id", paID, "status", status)
	writeJSON(w, http.StatusOK, model.CompleteResponse{Status: status})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(w, r, nil)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// decode reads a JSON body into v and validates it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.badRequest(w, r, nil)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			h.badRequest(w, r, fields)
			return false
		}
		h.badRequest(w, r, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, msgID string) {
	writeJSON(w, status, model.APIError{Code: code, Message: appI18n.T(r.Context(), msgID)})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, model.APIError{
		Code:    model.CodeInvalidRequest,
		Message: appI18n.T(r.Context(), "InvalidRequest"),
		Fields:  fields,
	})
}

// fail maps store and evaluator errors to a response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNoMoreQuestions):
		h.writeError(w, r, http.StatusNotFound, model.CodeNoMoreQuestions, "NoMoreQuestions")
	case errors.Is(err, model.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, model.CodeNotFound, "RecordNotFound")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, model.CodeInternal, "InternalError")
	}
}
