package store

import (
	"fmt"

	"github.com/pavelanni/voicetutor/internal/model"
)

// ExportResults builds export-ready results from all personal assignments.
func (s *Store) ExportResults() ([]model.StudentResult, error) {
	list, err := s.PersonalAssignments(0, 0)
	if err != nil {
		return nil, fmt.Errorf("list personal assignments: %w", err)
	}

	var results []model.StudentResult
	for _, pa := range list {
		student, err := s.GetStudent(pa.StudentID)
		if err != nil {
			return nil, fmt.Errorf("get student %d: %w", pa.StudentID, err)
		}
		stats, err := s.Statistics(pa.ID)
		if err != nil {
			return nil, fmt.Errorf("statistics for %d: %w", pa.ID, err)
		}
		seq, err := s.Sequence(pa.ID)
		if err != nil {
			return nil, fmt.Errorf("sequence for %d: %w", pa.ID, err)
		}
		answers, err := s.Answers(pa.ID)
		if err != nil {
			return nil, fmt.Errorf("answers for %d: %w", pa.ID, err)
		}

		byQuestion := make(map[int64][]model.Answer)
		for _, a := range answers {
			byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
		}

		questions := make([]model.QuestionResult, 0, len(seq))
		for _, q := range seq {
			questions = append(questions, model.QuestionResult{
				Number:      q.Number,
				Prompt:      q.Prompt,
				Difficulty:  q.Difficulty,
				ModelAnswer: q.ModelAnswer,
				Answers:     byQuestion[q.ID],
			})
		}

		results = append(results, model.StudentResult{
			StudentID:    student.ID,
			StudentName:  student.Name,
			AssignmentID: pa.AssignmentID,
			Title:        pa.Title,
			Status:       pa.Status,
			StartedAt:    pa.StartedAt,
			SubmittedAt:  pa.SubmittedAt,
			Statistics:   stats,
			Questions:    questions,
		})
	}

	return results, nil
}
