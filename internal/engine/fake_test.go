package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/pavelanni/voicetutor/internal/model"
)

var errBoom = errors.New("boom")

// fakeRepo is an in-memory Repository that counts calls.
type fakeRepo struct {
	base      []model.Question
	next      []model.Question // served by NextQuestion in order
	nextErr   error
	baseErr   error
	stats     []model.ProgressStatistics // served by statistics calls in order; last one repeats
	statsErr  error
	list      []model.PersonalAssignment
	listErr   error
	outcome   model.AnswerOutcome
	submitErr error
	doneErr   error

	calls map[string]int
	last  struct {
		personalAssignmentID, studentID, questionID int64
		audioPath                                   string
	}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{calls: make(map[string]int)}
}

func (f *fakeRepo) networkCalls() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRepo) PersonalAssignmentQuestions(_ context.Context, _ int64) ([]model.Question, error) {
	f.calls["questions"]++
	if f.baseErr != nil {
		return nil, f.baseErr
	}
	return f.base, nil
}

func (f *fakeRepo) NextQuestion(_ context.Context, _ int64) (model.Question, error) {
	f.calls["next"]++
	if f.nextErr != nil {
		return model.Question{}, f.nextErr
	}
	if len(f.next) == 0 {
		return model.Question{}, fmt.Errorf("get next question: %w", model.ErrNoMoreQuestions)
	}
	q := f.next[0]
	f.next = f.next[1:]
	return q, nil
}

func (f *fakeRepo) PersonalAssignmentStatistics(_ context.Context, _ int64) (model.ProgressStatistics, error) {
	f.calls["stats"]++
	if f.statsErr != nil {
		return model.ProgressStatistics{}, f.statsErr
	}
	if len(f.stats) == 0 {
		return model.ProgressStatistics{}, nil
	}
	s := f.stats[0]
	if len(f.stats) > 1 {
		f.stats = f.stats[1:]
	}
	return s, nil
}

func (f *fakeRepo) PersonalAssignments(_ context.Context, _, _ int64) ([]model.PersonalAssignment, error) {
	f.calls["list"]++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeRepo) SubmitAnswer(_ context.Context, personalAssignmentID, studentID, questionID int64, audioPath string) (model.AnswerOutcome, error) {
	f.calls["submit"]++
	f.last.personalAssignmentID = personalAssignmentID
	f.last.studentID = studentID
	f.last.questionID = questionID
	f.last.audioPath = audioPath
	if f.submitErr != nil {
		return model.AnswerOutcome{}, f.submitErr
	}
	return f.outcome, nil
}

func (f *fakeRepo) CompletePersonalAssignment(_ context.Context, _ int64) error {
	f.calls["complete"]++
	return f.doneErr
}

func baseQuestions(numbers ...string) []model.Question {
	out := make([]model.Question, len(numbers))
	for i, n := range numbers {
		out[i] = model.Question{ID: int64(i + 1), Number: n, Prompt: "question " + n}
	}
	return out
}
