package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/voicetutor/internal/model"
)

const personalSelect = `
	SELECT pa.id, pa.student_id, pa.assignment_id, a.title, a.subject, pa.status,
	       pa.started_at, pa.submitted_at,
	       (SELECT COUNT(*) FROM questions q WHERE q.assignment_id = a.id AND q.parent_id IS NULL)
	FROM personal_assignments pa
	JOIN assignments a ON a.id = pa.assignment_id`

func scanPersonal(row interface{ Scan(...any) error }) (model.PersonalAssignment, error) {
	var pa model.PersonalAssignment
	err := row.Scan(&pa.ID, &pa.StudentID, &pa.AssignmentID, &pa.Title, &pa.Subject, &pa.Status,
		&pa.StartedAt, &pa.SubmittedAt, &pa.TotalQuestions)
	return pa, err
}

// Enroll creates the personal assignment of a student for an assignment. It
// returns the existing record if the student is already enrolled.
func (s *Store) Enroll(studentID, assignmentID int64) (model.PersonalAssignment, error) {
	if _, err := s.GetStudent(studentID); err != nil {
		return model.PersonalAssignment{}, err
	}
	if _, err := s.GetAssignment(assignmentID); err != nil {
		return model.PersonalAssignment{}, err
	}
	_, err := s.db.Exec(
		`INSERT INTO personal_assignments (student_id, assignment_id, status) VALUES (?, ?, ?)
		 ON CONFLICT(student_id, assignment_id) DO NOTHING`,
		studentID, assignmentID, model.StatusNotStarted,
	)
	if err != nil {
		return model.PersonalAssignment{}, err
	}
	pa, err := scanPersonal(s.db.QueryRow(personalSelect+` WHERE pa.student_id = ? AND pa.assignment_id = ?`,
		studentID, assignmentID))
	if err != nil {
		return model.PersonalAssignment{}, err
	}
	slog.Info("enrolled student", "student_id", studentID, "assignment_id", assignmentID, "personal_assignment_id", pa.ID)
	return s.withSolved(pa)
}

// GetPersonalAssignment returns a personal assignment by ID.
func (s *Store) GetPersonalAssignment(id int64) (model.PersonalAssignment, error) {
	pa, err := scanPersonal(s.db.QueryRow(personalSelect+` WHERE pa.id = ?`, id))
	if err != nil {
		return model.PersonalAssignment{}, notFound(err, "personal assignment", id)
	}
	return pa, nil
}

// PersonalAssignments lists personal assignments. A zero studentID or
// assignmentID matches any.
func (s *Store) PersonalAssignments(studentID, assignmentID int64) ([]model.PersonalAssignment, error) {
	query := personalSelect + ` WHERE 1=1`
	var args []any
	if studentID != 0 {
		query += ` AND pa.student_id = ?`
		args = append(args, studentID)
	}
	if assignmentID != 0 {
		query += ` AND pa.assignment_id = ?`
		args = append(args, assignmentID)
	}
	query += ` ORDER BY pa.id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	var list []model.PersonalAssignment
	for rows.Next() {
		pa, err := scanPersonal(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, pa)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Solved counts need further queries, which a single connection cannot
	// run while rows are open.
	for i := range list {
		if list[i], err = s.withSolved(list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Store) withSolved(pa model.PersonalAssignment) (model.PersonalAssignment, error) {
	st, err := s.Statistics(pa.ID)
	if err != nil {
		return pa, fmt.Errorf("statistics for %d: %w", pa.ID, err)
	}
	pa.SolvedNum = st.SolvedQuestions
	return pa, nil
}

// UpdatePersonalStatus sets the status of an attempt, stamping started_at and
// submitted_at on the corresponding transitions.
func (s *Store) UpdatePersonalStatus(id int64, status model.AssignmentStatus) error {
	query := `UPDATE personal_assignments SET status = ? WHERE id = ?`
	args := []any{status, id}
	now := time.Now()
	switch status {
	case model.StatusInProgress:
		query = `UPDATE personal_assignments SET status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`
		args = []any{status, now, id}
	case model.StatusSubmitted:
		query = `UPDATE personal_assignments SET status = ?, submitted_at = ? WHERE id = ?`
		args = []any{status, now, id}
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(sql.ErrNoRows, "personal assignment", id)
	}
	return nil
}

// CompletePersonalAssignment submits an attempt and grades it when every base
// question has been solved.
func (s *Store) CompletePersonalAssignment(id int64) (model.AssignmentStatus, error) {
	if err := s.UpdatePersonalStatus(id, model.StatusSubmitted); err != nil {
		return "", err
	}
	st, err := s.Statistics(id)
	if err != nil {
		return "", err
	}
	if st.TotalBaseQuestions == 0 || st.SolvedQuestions < st.TotalBaseQuestions {
		return model.StatusSubmitted, nil
	}
	if err := s.UpdatePersonalStatus(id, model.StatusGraded); err != nil {
		return "", err
	}
	return model.StatusGraded, nil
}
