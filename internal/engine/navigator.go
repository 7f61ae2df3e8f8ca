package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pavelanni/voicetutor/internal/model"
)

// NavState is the state of the visible question sequence.
type NavState int

const (
	StateEmpty NavState = iota
	StateActive
	StateCompleted
)

func (s NavState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Navigator owns the visible question sequence and the cursor into it.
// Tail questions only enter the sequence through AppendTail; the navigator
// never asks the server for one.
type Navigator struct {
	repo      QuestionSource
	stats     *Reconciler
	log       *slog.Logger
	questions []model.Question
	cursor    int
	state     NavState
	baseCount int
	notify    func()
}

// NewNavigator creates an empty navigator. stats is consulted when the server
// reports that no questions remain.
func NewNavigator(repo QuestionSource, stats *Reconciler, log *slog.Logger) *Navigator {
	if log == nil {
		log = slog.Default()
	}
	return &Navigator{repo: repo, stats: stats, log: log}
}

// State returns the navigation state.
func (n *Navigator) State() NavState { return n.state }

// Cursor returns the index of the current question.
func (n *Navigator) Cursor() int { return n.cursor }

// Len returns the length of the visible sequence.
func (n *Navigator) Len() int { return len(n.questions) }

// BaseCount returns the number of base questions seen by the last load.
func (n *Navigator) BaseCount() int { return n.baseCount }

// Questions returns a copy of the visible sequence.
func (n *Navigator) Questions() []model.Question {
	out := make([]model.Question, len(n.questions))
	copy(out, n.questions)
	return out
}

// Current returns the question under the cursor.
func (n *Navigator) Current() (model.Question, bool) {
	if len(n.questions) == 0 {
		return model.Question{}, false
	}
	return n.questions[n.cursor], true
}

// Advance moves to the next question, stopping at the last one.
func (n *Navigator) Advance() {
	if n.cursor+1 >= len(n.questions) {
		return
	}
	n.cursor++
	n.changed()
}

// Retreat moves to the previous question, stopping at the first one.
func (n *Navigator) Retreat() {
	if n.cursor == 0 || len(n.questions) == 0 {
		return
	}
	n.cursor--
	n.changed()
}

// AppendTail adds q to the end of the sequence without moving the cursor.
func (n *Navigator) AppendTail(q model.Question) {
	n.questions = append(n.questions, q)
	n.state = StateActive
	n.changed()
}

// Complete clears the sequence after the assignment has been finalized.
func (n *Navigator) Complete() {
	n.questions = nil
	n.cursor = 0
	n.state = StateCompleted
	n.changed()
}

// JumpToNumber moves the cursor to the question numbered target. Numbers not
// in the sequence are fetched from the server only when they look like a
// base question; absent tail numbers and non-numeric targets are ignored.
func (n *Navigator) JumpToNumber(ctx context.Context, target string, personalAssignmentID int64) error {
	target = strings.TrimSpace(target)
	if i := n.indexOf(target); i >= 0 {
		if i != n.cursor {
			n.cursor = i
			n.changed()
		}
		return nil
	}
	if model.IsTailNumber(target) {
		n.log.Debug("tail question not in sequence, ignoring jump", "number", target)
		return nil
	}
	if v, err := strconv.Atoi(target); err != nil || v <= 0 {
		return nil
	}
	return n.FetchNext(ctx, personalAssignmentID)
}

// LoadAllQuestions records the base question count and seeds the sequence
// with the server's next question. A populated sequence is replaced.
func (n *Navigator) LoadAllQuestions(ctx context.Context, personalAssignmentID int64) error {
	base, err := n.repo.PersonalAssignmentQuestions(ctx, personalAssignmentID)
	if err != nil {
		return repositoryError(err)
	}
	n.baseCount = len(base)

	q, err := n.repo.NextQuestion(ctx, personalAssignmentID)
	if err != nil {
		return n.fetchFailed(ctx, personalAssignmentID, err)
	}
	n.questions = []model.Question{q}
	n.cursor = 0
	n.state = StateActive
	n.changed()
	return nil
}

// FetchNext asks the server for the next question and makes it current.
func (n *Navigator) FetchNext(ctx context.Context, personalAssignmentID int64) error {
	q, err := n.repo.NextQuestion(ctx, personalAssignmentID)
	if err != nil {
		return n.fetchFailed(ctx, personalAssignmentID, err)
	}
	if i := n.indexOf(q.Number); i >= 0 {
		n.cursor = i
	} else {
		n.questions = append(n.questions, q)
		n.cursor = len(n.questions) - 1
	}
	n.state = StateActive
	n.changed()
	return nil
}

// fetchFailed decides whether running out of questions is the expected end
// of the assignment. Any other failure is returned as a repository error.
func (n *Navigator) fetchFailed(ctx context.Context, personalAssignmentID int64, err error) error {
	if !errors.Is(err, model.ErrNoMoreQuestions) {
		return repositoryError(err)
	}
	if _, rerr := n.stats.Refresh(ctx, personalAssignmentID); rerr != nil {
		n.log.Warn("statistics refresh failed, using held snapshot", "personal_assignment_id", personalAssignmentID, "error", rerr)
	}
	stats, ok := n.stats.Current()
	total := stats.TotalBaseQuestions
	if n.baseCount > 0 {
		total = n.baseCount
	}
	if ok && stats.SolvedQuestions == total {
		n.log.Debug("all questions solved", "personal_assignment_id", personalAssignmentID, "solved", stats.SolvedQuestions)
		return nil
	}
	return &Error{Kind: KindIncomplete, MessageID: MsgNotAllQuestionsCompleted, Err: err}
}

func (n *Navigator) indexOf(number string) int {
	for i, q := range n.questions {
		if q.Number == number {
			return i
		}
	}
	return -1
}

func (n *Navigator) changed() {
	if n.notify != nil {
		n.notify()
	}
}
