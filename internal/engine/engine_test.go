package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/voicetutor/internal/model"
)

const studentID = int64(3)

func loadedEngine(t *testing.T, repo *fakeRepo) *Engine {
	t.Helper()
	repo.base = baseQuestions("1", "2", "3")
	repo.next = []model.Question{repo.base[0]}
	e := New(repo)
	t.Cleanup(e.Close)
	require.NoError(t, e.LoadAllQuestions(context.Background(), paID))
	return e
}

func TestSubmitAnswerAppendsTailAndRefreshes(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)

	tail := model.Question{ID: 11, Number: "1-1", Prompt: "follow up"}
	repo.outcome = model.AnswerOutcome{IsCorrect: false, ResultingNumber: "1", TailQuestion: &tail}
	repo.stats = []model.ProgressStatistics{{TotalBaseQuestions: 3, AnsweredQuestions: 1, TotalQuestionsIncludingTail: 4}}

	before := e.Navigator().Len()
	outcome, err := e.SubmitAnswer(context.Background(), paID, studentID, 1, "/tmp/a.m4a")
	require.NoError(t, err)

	assert.Equal(t, before+1, e.Navigator().Len())
	assert.Equal(t, "1-1", e.Navigator().Questions()[before].Number)
	assert.Equal(t, 0, e.Navigator().Cursor())
	assert.Same(t, &tail, outcome.TailQuestion)

	stats, ok := e.Statistics()
	require.True(t, ok)
	assert.Equal(t, 4, stats.TotalQuestionsIncludingTail)
	assert.Equal(t, 1, repo.calls["stats"])

	assert.Equal(t, int64(1), repo.last.questionID)
	assert.Equal(t, "/tmp/a.m4a", repo.last.audioPath)

	// The tail is now reachable locally.
	require.NoError(t, e.JumpToNumber(context.Background(), "1-1", paID))
	assert.Equal(t, 1, e.Navigator().Cursor())
}

func TestSubmitAnswerWithoutTailStillRefreshes(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)
	repo.outcome = model.AnswerOutcome{IsCorrect: true, ResultingNumber: "1"}

	_, err := e.SubmitAnswer(context.Background(), paID, studentID, 1, "a.wav")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Navigator().Len())
	assert.Equal(t, 1, repo.calls["stats"])

	outcome, ok := e.LastOutcome()
	require.True(t, ok)
	assert.True(t, outcome.IsCorrect)
}

func TestSubmitAnswerFailure(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)
	repo.submitErr = errBoom

	_, err := e.SubmitAnswer(context.Background(), paID, studentID, 1, "a.wav")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, e.Navigator().Len())
	assert.Zero(t, repo.calls["stats"])
	assert.ErrorIs(t, e.LastError(), errBoom)

	_, ok := e.LastOutcome()
	assert.False(t, ok)
}

func TestSubmitAnswerStatisticsFailureKeepsOutcome(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)
	tail := model.Question{ID: 11, Number: "1-1"}
	repo.outcome = model.AnswerOutcome{TailQuestion: &tail}
	repo.statsErr = errBoom

	_, err := e.SubmitAnswer(context.Background(), paID, studentID, 1, "a.wav")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Navigator().Len())

	var engErr *Error
	require.ErrorAs(t, e.LastError(), &engErr)
	assert.Equal(t, KindStatistics, engErr.Kind)
}

func TestSubmitAnswerPublishesTailBeforeStatistics(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)
	tail := model.Question{ID: 11, Number: "1-1"}
	repo.outcome = model.AnswerOutcome{TailQuestion: &tail}
	repo.stats = []model.ProgressStatistics{{AnsweredQuestions: 1}}

	var snaps []Snapshot
	e.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	_, err := e.SubmitAnswer(context.Background(), paID, studentID, 1, "a.wav")
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	assert.Len(t, snaps[0].Questions, 2)
	assert.Nil(t, snaps[0].Statistics)
	require.NotNil(t, snaps[1].Statistics)
	assert.Equal(t, 1, snaps[1].Statistics.AnsweredQuestions)
}

func TestSubmitRecordedAnswer(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)

	_, err := e.SubmitRecordedAnswer(context.Background(), paID, studentID)
	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, KindNotFound, engErr.Kind)
	assert.Zero(t, repo.calls["submit"])

	e.Audio().Start()
	e.Audio().Tick(4)
	e.Audio().Stop("/rec/answer-1.m4a")

	_, err = e.SubmitRecordedAnswer(context.Background(), paID, studentID)
	require.NoError(t, err)
	assert.Equal(t, "/rec/answer-1.m4a", repo.last.audioPath)
	assert.Equal(t, int64(1), repo.last.questionID)
	assert.Equal(t, model.AudioRecording{}, e.Audio().State())
}

func TestCompleteAssignment(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)
	e.Navigator().AppendTail(model.Question{ID: 11, Number: "1-1"})
	e.Advance()

	require.NoError(t, e.CompleteAssignment(context.Background(), paID))
	assert.True(t, e.Completed())
	assert.Equal(t, 0, e.Navigator().Len())
	assert.Equal(t, 0, e.Navigator().Cursor())
	assert.Equal(t, StateCompleted, e.Snapshot().State)
}

func TestCompleteAssignmentFailureKeepsState(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)
	repo.doneErr = errBoom

	err := e.CompleteAssignment(context.Background(), paID)
	require.ErrorIs(t, err, errBoom)
	assert.False(t, e.Completed())
	assert.Equal(t, 1, e.Navigator().Len())
	assert.Equal(t, StateActive, e.Navigator().State())
}

func TestStickyErrorIsOverwrittenAndCleared(t *testing.T) {
	repo := newFakeRepo()
	e := loadedEngine(t, repo)

	repo.submitErr = errBoom
	_, _ = e.SubmitAnswer(context.Background(), paID, studentID, 1, "a.wav")
	require.ErrorIs(t, e.LastError(), errBoom)

	// Successful operations leave the error in place.
	e.Advance()
	require.NoError(t, e.JumpToNumber(context.Background(), "1", paID))
	require.ErrorIs(t, e.LastError(), errBoom)

	repo.doneErr = model.ErrNotFound
	_ = e.CompleteAssignment(context.Background(), paID)
	assert.ErrorIs(t, e.LastError(), model.ErrNotFound)
	assert.NotErrorIs(t, e.LastError(), errBoom)

	e.ClearError()
	assert.NoError(t, e.LastError())
	assert.Nil(t, e.Snapshot().Err)
}

func TestJumpLocalThenFetchesMissingBase(t *testing.T) {
	repo := newFakeRepo()
	e := New(repo)
	defer e.Close()
	for _, q := range baseQuestions("1", "2", "3") {
		e.Navigator().AppendTail(q)
	}

	require.NoError(t, e.JumpToNumber(context.Background(), "2", paID))
	assert.Equal(t, 1, e.Navigator().Cursor())
	assert.Zero(t, repo.networkCalls())

	repo.next = []model.Question{{ID: 4, Number: "4"}}
	require.NoError(t, e.JumpToNumber(context.Background(), "4", paID))
	assert.Equal(t, 1, repo.calls["next"])
}

func TestSubscribeAndClose(t *testing.T) {
	repo := newFakeRepo()
	e := New(repo)

	var got []Snapshot
	unsub := e.Subscribe(func(s Snapshot) { got = append(got, s) })

	e.Audio().Start()
	require.Len(t, got, 1)
	assert.True(t, got[0].Audio.IsRecording)

	unsub()
	e.Audio().Stop("x")
	assert.Len(t, got, 1)

	e.Subscribe(func(s Snapshot) { got = append(got, s) })
	e.Close()
	e.Audio().Reset()
	assert.Len(t, got, 1)
}

func TestFindPersonalAssignmentAndRefreshFor(t *testing.T) {
	repo := newFakeRepo()
	repo.list = []model.PersonalAssignment{
		{ID: 100, StudentID: studentID, AssignmentID: 1},
		{ID: 200, StudentID: studentID, AssignmentID: 2},
	}
	repo.stats = []model.ProgressStatistics{{SolvedQuestions: 1}}
	e := New(repo)
	defer e.Close()

	pa, err := e.FindPersonalAssignment(context.Background(), studentID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(200), pa.ID)

	require.NoError(t, e.RefreshStatisticsFor(context.Background(), studentID, 2))
	stats, ok := e.Statistics()
	require.True(t, ok)
	assert.Equal(t, 1, stats.SolvedQuestions)
}
