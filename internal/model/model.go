package model

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNoMoreQuestions is returned by the next-question endpoint once every
	// question of a personal assignment has been answered.
	ErrNoMoreQuestions = errors.New("no more questions")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// AssignmentStatus is the lifecycle status of one student's attempt.
type AssignmentStatus string

const (
	StatusNotStarted AssignmentStatus = "NOT_STARTED"
	StatusInProgress AssignmentStatus = "IN_PROGRESS"
	StatusSubmitted  AssignmentStatus = "SUBMITTED"
	StatusGraded     AssignmentStatus = "GRADED"
)

// Known reports whether s is one of the four defined statuses.
func (s AssignmentStatus) Known() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusSubmitted, StatusGraded:
		return true
	}
	return false
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a base or tail question as delivered by the server.
// Base questions are numbered "1", "2", ...; a tail question derived from
// base question N is numbered "N-k".
type Question struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	Prompt      string     `json:"prompt"`
	ModelAnswer string     `json:"model_answer"`
	Explanation string     `json:"explanation"`
	Difficulty  Difficulty `json:"difficulty"`
}

// IsTail reports whether q is a server-generated follow-up question.
func (q Question) IsTail() bool {
	return IsTailNumber(q.Number)
}

// BaseNumber returns the number of the base question q belongs to.
func (q Question) BaseNumber() string {
	base, _, _ := strings.Cut(q.Number, "-")
	return base
}

// IsTailNumber reports whether number uses the "N-k" tail format.
func IsTailNumber(number string) bool {
	return strings.Contains(number, "-")
}

// QuestionDraft is a question before the server has numbered it.
type QuestionDraft struct {
	Prompt      string     `json:"prompt" validate:"required"`
	ModelAnswer string     `json:"model_answer"`
	Explanation string     `json:"explanation"`
	Difficulty  Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

// ProgressStatistics is the server-computed progress of one personal assignment.
type ProgressStatistics struct {
	TotalBaseQuestions          int     `json:"total_base_questions"`
	SolvedQuestions             int     `json:"solved_questions"`
	TotalQuestionsIncludingTail int     `json:"total_questions_including_tail"`
	AnsweredQuestions           int     `json:"answered_questions"`
	CorrectAnswers              int     `json:"correct_answers"`
	Accuracy                    float64 `json:"accuracy"`
	Progress                    float64 `json:"progress"`
}

// AudioRecording is the state of the microphone capture for the current answer.
type AudioRecording struct {
	IsRecording    bool   `json:"is_recording"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	ArtifactPath   string `json:"artifact_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HasArtifact reports whether a recorded file is available for submission.
func (a AudioRecording) HasArtifact() bool {
	return a.ArtifactPath != ""
}

// AnswerOutcome is the server's verdict on a submitted answer.
// TailQuestion is set only when the server decided a follow-up is warranted.
type AnswerOutcome struct {
	IsCorrect       bool      `json:"is_correct"`
	ResultingNumber string    `json:"resulting_number,omitempty"`
	Feedback        string    `json:"feedback,omitempty"`
	TailQuestion    *Question `json:"tail_question,omitempty"`
}

// UploadState is the observable state of the assignment creation pipeline.
type UploadState struct {
	Progress    float64 `json:"progress"`
	IsUploading bool    `json:"is_uploading"`
	Succeeded   bool    `json:"succeeded"`
}

// PersonalAssignment is one student's attempt at one assignment.
type PersonalAssignment struct {
	ID             int64            `json:"id"`
	StudentID      int64            `json:"student_id"`
	AssignmentID   int64            `json:"assignment_id"`
	Title          string           `json:"title"`
	Subject        string           `json:"subject"`
	Status         AssignmentStatus `json:"status"`
	SolvedNum      int              `json:"solved_num"`
	TotalQuestions int              `json:"total_questions"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
}

// Assignment is the instructor-side assignment record.
type Assignment struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Subject        string    `json:"subject"`
	ClassID        int64     `json:"class_id"`
	Grade          string    `json:"grade"`
	Description    string    `json:"description"`
	TotalQuestions int       `json:"total_questions"`
	MaterialID     string    `json:"material_id"`
	DueAt          time.Time `json:"due_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateAssignmentRequest is the metadata sent in the first pipeline stage.
// Questions is optional and need not match the requested total number.
type CreateAssignmentRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Subject     string          `json:"subject" validate:"required"`
	ClassID     int64           `json:"class_id" validate:"gte=0"`
	Grade       string          `json:"grade"`
	Description string          `json:"description"`
	DueAt       time.Time       `json:"due_at"`
	Questions   []QuestionDraft `json:"questions,omitempty" validate:"dive"`
}

// CreatedAssignment is returned by assignment creation and tells the caller
// where to upload the material.
type CreatedAssignment struct {
	AssignmentID int64  `json:"assignment_id"`
	MaterialID   string `json:"material_id"`
	StorageKey   string `json:"storage_key"`
	UploadURL    string `json:"upload_url"`
}

// GenerateQuestionsRequest triggers server-side question generation.
type GenerateQuestionsRequest struct {
	MaterialID  string `json:"material_id" validate:"required,uuid"`
	TotalNumber int    `json:"total_number" validate:"gte=1,lte=50"`
}

// UploadStatus describes the stored material of an assignment.
type UploadStatus struct {
	Exists       bool      `json:"exists"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
	Bucket       string    `json:"bucket"`
}

// Material is an uploaded binary attached to an assignment.
type Material struct {
	ID           string
	AssignmentID int64
	StorageKey   string
	ContentType  string
	Size         int64
	UploadedAt   *time.Time
}

// Student is a roster entry.
type Student struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// Answer is a recorded answer to one question.
type Answer struct {
	ID                   int64     `json:"id"`
	PersonalAssignmentID int64     `json:"personal_assignment_id"`
	QuestionID           int64     `json:"question_id"`
	Transcript           string    `json:"transcript"`
	IsCorrect            bool      `json:"is_correct"`
	Feedback             string    `json:"feedback"`
	AudioPath            string    `json:"audio_path"`
	CreatedAt            time.Time `json:"created_at"`
}

// ServerConfig holds runtime parameters of the local backend set via CLI flags.
type ServerConfig struct {
	PublicURL     string // base URL used when issuing upload URLs
	Bucket        string // storage bucket name reported in upload status
	AudioDir      string // directory for received answer recordings
	MaxFollowups  int    // maximum tail questions per base question
	PromptVariant string // grading prompt variant (strict, standard, lenient)
}
