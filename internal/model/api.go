package model

// Error codes returned in APIError.Code.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeNoMoreQuestions  = "NO_MORE_QUESTIONS"
	CodeAlreadySubmitted = "ALREADY_SUBMITTED"
	CodeDuplicateImport  = "DUPLICATE_IMPORT"
	CodeInternal         = "INTERNAL"
)

// APIError is the JSON body of every non-2xx response of the backend API.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// SubmitAnswerResponse is returned by the answer endpoint.
type SubmitAnswerResponse struct {
	Outcome    AnswerOutcome `json:"outcome"`
	Transcript string        `json:"transcript"`
}

// CompleteResponse is returned by the completion endpoint.
type CompleteResponse struct {
	Status AssignmentStatus `json:"status"`
}

// EnrollRequest enrolls a student into an assignment.
type EnrollRequest struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`
}
