package engine

import (
	"context"
	"fmt"

	appI18n "github.com/pavelanni/voicetutor/internal/i18n"
)

// Kind classifies engine errors.
type Kind int

const (
	// KindRepository is a repository failure passed through verbatim.
	KindRepository Kind = iota
	// KindNotFound means a record the caller asked for does not exist.
	KindNotFound
	// KindIncomplete means the server ran out of questions while its own
	// statistics say base questions remain unsolved.
	KindIncomplete
	// KindLookup means the personal assignment list could not be fetched.
	KindLookup
	// KindStatistics means statistics could not be fetched.
	KindStatistics
)

func (k Kind) String() string {
	switch k {
	case KindRepository:
		return "repository"
	case KindNotFound:
		return "not found"
	case KindIncomplete:
		return "incomplete"
	case KindLookup:
		return "lookup"
	case KindStatistics:
		return "statistics"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message IDs of the user-facing messages.
const (
	MsgNotAllQuestionsCompleted   = "NotAllQuestionsCompleted"
	MsgPersonalAssignmentNotFound = "PersonalAssignmentNotFound"
	MsgStatisticsUnavailable      = "StatisticsUnavailable"
	MsgLookupFailed               = "LookupFailed"
	MsgNoRecordedAnswer           = "NoRecordedAnswer"
)

// Error is the error type surfaced by every engine operation.
type Error struct {
	Kind      Kind
	MessageID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	if e.Kind == KindRepository {
		return e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the text to show to the user. Repository failures without a
// message ID are passed through unchanged.
func (e *Error) Message(ctx context.Context) string {
	if e.MessageID == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String()
	}
	data := map[string]any{}
	if e.Err != nil {
		data["Err"] = e.Err.Error()
	}
	return appI18n.Td(ctx, e.MessageID, data)
}

func repositoryError(err error) *Error {
	return &Error{Kind: KindRepository, Err: err}
}
