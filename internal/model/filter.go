package model

import (
	"fmt"
	"strings"
)

// StatusFilter selects personal assignments by status.
type StatusFilter string

const (
	FilterAll        StatusFilter = "ALL"
	FilterNotStarted StatusFilter = StatusFilter(StatusNotStarted)
	FilterInProgress StatusFilter = StatusFilter(StatusInProgress)
	FilterSubmitted  StatusFilter = StatusFilter(StatusSubmitted)
	FilterGraded     StatusFilter = StatusFilter(StatusGraded)
)

// ParseStatusFilter accepts the filter names case-insensitively, with either
// "-" or "_" as separator. An empty string means FilterAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch StatusFilter(norm) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterNotStarted, FilterInProgress, FilterSubmitted, FilterGraded:
		return StatusFilter(norm), nil
	}
	return "", fmt.Errorf("unknown status filter %q", s)
}

// Pending returns the assignments that are not started or in progress.
func Pending(list []PersonalAssignment) []PersonalAssignment {
	return selectStatus(list, StatusNotStarted, StatusInProgress)
}

// Completed returns the assignments that are submitted or graded.
func Completed(list []PersonalAssignment) []PersonalAssignment {
	return selectStatus(list, StatusSubmitted, StatusGraded)
}

// FilterByStatus returns the subset of list matching f, in original order.
func FilterByStatus(list []PersonalAssignment, f StatusFilter) []PersonalAssignment {
	if f == FilterAll {
		out := make([]PersonalAssignment, len(list))
		copy(out, list)
		return out
	}
	return selectStatus(list, AssignmentStatus(f))
}

func selectStatus(list []PersonalAssignment, statuses ...AssignmentStatus) []PersonalAssignment {
	out := make([]PersonalAssignment, 0, len(list))
	for _, pa := range list {
		for _, s := range statuses {
			if pa.Status == s {
				out = append(out, pa)
				break
			}
		}
	}
	return out
}
