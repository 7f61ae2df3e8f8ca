package engine

import (
	"context"

	"github.com/pavelanni/voicetutor/internal/model"
)

// QuestionSource provides the questions of a personal assignment.
type QuestionSource interface {
	// PersonalAssignmentQuestions returns the base questions only.
	PersonalAssignmentQuestions(ctx context.Context, personalAssignmentID int64) ([]model.Question, error)
	// NextQuestion returns the next unanswered question, or an error wrapping
	// model.ErrNoMoreQuestions once there is none.
	NextQuestion(ctx context.Context, personalAssignmentID int64) (model.Question, error)
}

// StatisticsSource provides server-computed progress.
type StatisticsSource interface {
	PersonalAssignmentStatistics(ctx context.Context, personalAssignmentID int64) (model.ProgressStatistics, error)
	// PersonalAssignments lists a student's attempts. assignmentID 0 means all.
	PersonalAssignments(ctx context.Context, studentID, assignmentID int64) ([]model.PersonalAssignment, error)
}

// Repository is everything the student-side engine needs from the backend.
type Repository interface {
	QuestionSource
	StatisticsSource
	SubmitAnswer(ctx context.Context, personalAssignmentID, studentID, questionID int64, audioPath string) (model.AnswerOutcome, error)
	CompletePersonalAssignment(ctx context.Context, personalAssignmentID int64) error
}
