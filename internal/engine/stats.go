package engine

import (
	"context"
	"fmt"

	"github.com/pavelanni/voicetutor/internal/model"
)

// Reconciler holds the latest server statistics for one attempt. The snapshot
// is only ever replaced as a whole by a successful fetch.
type Reconciler struct {
	repo    StatisticsSource
	current *model.ProgressStatistics
	notify  func()
}

// NewReconciler creates a Reconciler with no snapshot.
func NewReconciler(repo StatisticsSource) *Reconciler {
	return &Reconciler{repo: repo}
}

// Current returns the held snapshot, if any.
func (r *Reconciler) Current() (model.ProgressStatistics, bool) {
	if r.current == nil {
		return model.ProgressStatistics{}, false
	}
	return *r.current, true
}

// Refresh fetches statistics and replaces the snapshot. On failure the
// previous snapshot is kept.
func (r *Reconciler) Refresh(ctx context.Context, personalAssignmentID int64) (model.ProgressStatistics, error) {
	stats, err := r.repo.PersonalAssignmentStatistics(ctx, personalAssignmentID)
	if err != nil {
		return model.ProgressStatistics{}, &Error{Kind: KindStatistics, MessageID: MsgStatisticsUnavailable, Err: err}
	}
	r.current = &stats
	if r.notify != nil {
		r.notify()
	}
	return stats, nil
}

// Lookup finds the student's attempt at assignmentID.
func (r *Reconciler) Lookup(ctx context.Context, studentID, assignmentID int64) (model.PersonalAssignment, error) {
	list, err := r.repo.PersonalAssignments(ctx, studentID, assignmentID)
	if err != nil {
		return model.PersonalAssignment{}, &Error{Kind: KindLookup, MessageID: MsgLookupFailed, Err: err}
	}
	for _, pa := range list {
		if pa.AssignmentID == assignmentID {
			return pa, nil
		}
	}
	return model.PersonalAssignment{}, &Error{
		Kind:      KindNotFound,
		MessageID: MsgPersonalAssignmentNotFound,
		Err:       fmt.Errorf("student %d assignment %d: %w", studentID, assignmentID, model.ErrNotFound),
	}
}

// RefreshFor refreshes statistics when only the student and assignment are
// known. Lookup and statistics failures carry different kinds.
func (r *Reconciler) RefreshFor(ctx context.Context, studentID, assignmentID int64) (model.ProgressStatistics, error) {
	pa, err := r.Lookup(ctx, studentID, assignmentID)
	if err != nil {
		return model.ProgressStatistics{}, err
	}
	return r.Refresh(ctx, pa.ID)
}
