package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/voicetutor/internal/model"
)

func (h *Handler) rosterRoutes(r chi.Router) {
	r.Get("/students", h.handleListStudents)
	r.Post("/students", h.handleCreateStudent)
	r.Post("/assignments/{assignmentID}/enrollments", h.handleEnroll)
}

func (h *Handler) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.store.ListStudents()
	if err != nil {
		slog.Error("failed to list students", "error", err)
		h.fail(w, r, err)
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req model.Student
	if !h.decode(w, r, &req) {
		return
	}
	st, err := h.store.CreateStudent(req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	assignmentID, ok := h.pathID(w, r, "assignmentID")
	if !ok {
		return
	}
	var req model.EnrollRequest
	if !h.decode(w, r, &req) {
		return
	}
	pa, err := h.store.Enroll(req.StudentID, assignmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pa)
}
