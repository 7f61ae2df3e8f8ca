package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appI18n "github.com/pavelanni/voicetutor/internal/i18n"
	"github.com/pavelanni/voicetutor/internal/model"
)

func TestErrorMessages(t *testing.T) {
	require.NoError(t, appI18n.Init("ko"))
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer("ko"))

	incomplete := &Error{Kind: KindIncomplete, MessageID: MsgNotAllQuestionsCompleted, Err: model.ErrNoMoreQuestions}
	assert.Equal(t, "아직 모든 문제를 완료하지 못했습니다", incomplete.Message(ctx))
	assert.Equal(t, "incomplete: no more questions", incomplete.Error())

	// Repository failures pass through verbatim.
	repo := repositoryError(errBoom)
	assert.Equal(t, "boom", repo.Message(ctx))
	assert.Equal(t, "boom", repo.Error())

	stats := &Error{Kind: KindStatistics, MessageID: MsgStatisticsUnavailable, Err: errBoom}
	assert.Equal(t, "통계 정보를 불러오지 못했습니다: boom", stats.Message(ctx))
}
