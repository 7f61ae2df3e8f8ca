package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/voicetutor/internal/model"
	"github.com/pavelanni/voicetutor/internal/pdftext"
)

const maxMaterialBytes = 50 << 20

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAssignments()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAssignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.store.CreateAssignment(req, h.config.PublicURL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("created assignment", "assignment_id", created.AssignmentID, "title", req.Title, "draft_questions", len(req.Questions))
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	st, err := h.store.UploadStatus(id, h.config.Bucket)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleStoragePut receives the material bytes at the upload URL issued by
// assignment creation.
func (h *Handler) handleStoragePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMaterialBytes))
	if err != nil {
		h.badRequest(w, r, nil)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if err := h.store.PutMaterialData(key, contentType, data); err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("stored material", "key", key, "bytes", len(data))
	w.WriteHeader(http.StatusOK)
}

// handleGenerateQuestions extracts the text of the uploaded material and asks
// the evaluator for the requested number of questions.
func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	var req model.GenerateQuestionsRequest
	if !h.decode(w, r, &req) {
		return
	}

	a, err := h.store.GetAssignment(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if a.MaterialID != req.MaterialID {
		h.writeError(w, r, http.StatusNotFound, model.CodeNotFound, "RecordNotFound")
		return
	}
	data, err := h.store.MaterialData(req.MaterialID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	text, err := h.extractText(data)
	if err != nil {
		slog.Warn("material text extraction failed", "assignment_id", id, "error", err)
		fields := map[string]string{"MaterialID": "text"}
		if !errors.Is(err, pdftext.ErrNoText) {
			fields["MaterialID"] = "pdf"
		}
		h.badRequest(w, r, fields)
		return
	}

	drafts, err := h.llm.GenerateQuestions(r.Context(), text, req.TotalNumber)
	if err != nil {
		slog.Error("question generation failed", "assignment_id", id, "error", err)
		h.fail(w, r, err)
		return
	}
	qs, err := h.store.InsertQuestions(id, drafts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("generated questions", "assignment_id", id, "requested", req.TotalNumber, "generated", len(qs))
	writeJSON(w, http.StatusCreated, qs)
}

// handleImportQuestions appends base questions from an uploaded JSON file of
// drafts. A file whose content was already imported into the same assignment
// is rejected.
func (h *Handler) handleImportQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		h.badRequest(w, r, nil)
		return
	}
	file, header, err := r.FormFile("questions_file")
	if err != nil {
		h.badRequest(w, r, map[string]string{"questions_file": "required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.badRequest(w, r, nil)
		return
	}
	if _, err := h.store.GetAssignment(id); err != nil {
		h.fail(w, r, err)
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	key := fmt.Sprintf("assignment-%d/%s", id, header.Filename)
	storedHash, err := h.store.GetImportedFileHash(key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if storedHash == hash {
		h.writeError(w, r, http.StatusConflict, model.CodeDuplicateImport, "UploadDuplicate")
		return
	}

	var drafts []model.QuestionDraft
	if err := json.Unmarshal(data, &drafts); err != nil {
		h.badRequest(w, r, map[string]string{"questions_file": "json"})
		return
	}
	if len(drafts) == 0 {
		h.badRequest(w, r, map[string]string{"questions_file": "min"})
		return
	}
	for _, d := range drafts {
		if err := h.validate.Struct(d); err != nil {
			h.badRequest(w, r, map[string]string{"questions_file": "questions"})
			return
		}
	}

	qs, err := h.store.InsertQuestions(id, drafts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.store.SetImportedFileHash(key, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}
	slog.Info("imported questions", "assignment_id", id, "filename", header.Filename, "count", len(qs))
	writeJSON(w, http.StatusCreated, qs)
}
