package store

import (
	"log/slog"
	"time"

	"github.com/pavelanni/voicetutor/internal/model"
)

// CreateStudent inserts a new roster entry.
func (s *Store) CreateStudent(name string) (model.Student, error) {
	now := time.Now()
	res, err := s.db.Exec(`INSERT INTO students (name, created_at) VALUES (?, ?)`, name, now)
	if err != nil {
		slog.Error("failed to create student", "name", name, "error", err)
		return model.Student{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Student{}, err
	}
	slog.Info("created student", "id", id, "name", name)
	return model.Student{ID: id, Name: name, CreatedAt: now}, nil
}

// GetStudent returns a student by ID.
func (s *Store) GetStudent(id int64) (model.Student, error) {
	var st model.Student
	err := s.db.QueryRow(
		`SELECT id, name, created_at FROM students WHERE id = ?`, id,
	).Scan(&st.ID, &st.Name, &st.CreatedAt)
	return st, notFound(err, "student", id)
}

// GetStudentByName returns a student by name.
func (s *Store) GetStudentByName(name string) (model.Student, error) {
	var st model.Student
	err := s.db.QueryRow(
		`SELECT id, name, created_at FROM students WHERE name = ?`, name,
	).Scan(&st.ID, &st.Name, &st.CreatedAt)
	return st, notFound(err, "student", name)
}

// ListStudents returns all students.
func (s *Store) ListStudents() ([]model.Student, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.Name, &st.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, st)
	}
	return list, rows.Err()
}
