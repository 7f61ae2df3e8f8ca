package model

import "time"

// ResultsExport is the top-level JSON structure for personal assignment export.
type ResultsExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one student's attempt at one assignment.
type StudentResult struct {
	StudentID    int64              `json:"student_id"`
	StudentName  string             `json:"student_name"`
	AssignmentID int64              `json:"assignment_id"`
	Title        string             `json:"title"`
	Status       AssignmentStatus   `json:"status"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	SubmittedAt  *time.Time         `json:"submitted_at,omitempty"`
	Statistics   ProgressStatistics `json:"statistics"`
	Questions    []QuestionResult   `json:"questions"`
}

// QuestionResult holds per-question data for export, including tail questions.
type QuestionResult struct {
	Number      string     `json:"number"`
	Prompt      string     `json:"prompt"`
	Difficulty  Difficulty `json:"difficulty"`
	ModelAnswer string     `json:"model_answer"`
	Answers     []Answer   `json:"answers"`
}
