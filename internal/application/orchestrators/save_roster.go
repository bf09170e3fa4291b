package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"chapel/internal/domain/attendance"
	"chapel/internal/metrics"
)

// RosterItem is one untyped roster line as received from a caller.
type RosterItem struct {
	MemberID int64
	Status   string
	Notes    string
}

// SaveRosterAttendanceStore defines the attendance store interface needed by SaveRoster.
type SaveRosterAttendanceStore interface {
	SaveBucket(ctx context.Context, bucket attendance.Bucket, entries []attendance.Entry, expectedVersion *int64) (attendance.SaveOutcome, error)
}

// RosterMemberStore checks that referenced members exist.
type RosterMemberStore interface {
	MissingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

// SaveRosterInput carries input for the save roster orchestrator.
type SaveRosterInput struct {
	Date            string
	Type            string
	Items           []RosterItem
	ExpectedVersion *int64
	ActorID         string
}

// SaveRosterDeps holds dependencies for SaveRoster.
type SaveRosterDeps struct {
	AttendanceStore SaveRosterAttendanceStore
	MemberStore     RosterMemberStore
	Metrics         metrics.Recorder
}

// ExecuteSaveRoster upserts a batch of statuses into one (date, type) bucket.
// PRE: date is YYYY-MM-DD, type is a known service type, every item is valid
// POST: All items are committed in one transaction or none are; members not
// listed keep their existing records
// INVARIANT: At most one record exists per (member, date, type)
func ExecuteSaveRoster(ctx context.Context, input SaveRosterInput, deps SaveRosterDeps) (attendance.SaveOutcome, error) {
	bucket, err := attendance.NewBucket(input.Date, input.Type)
	if err != nil {
		return attendance.SaveOutcome{}, err
	}
	entries, err := toEntries(input.Items)
	if err != nil {
		return attendance.SaveOutcome{}, err
	}
	if err := requireMembers(ctx, deps.MemberStore, entries); err != nil {
		return attendance.SaveOutcome{}, err
	}

	out, err := deps.AttendanceStore.SaveBucket(ctx, bucket, entries, input.ExpectedVersion)
	if err != nil {
		if errors.Is(err, attendance.ErrVersionConflict) {
			recorder(deps.Metrics).RecordVersionConflict("save")
			slog.Info("attendance_event", "event", "roster_save_conflict", "bucket", bucket.String(), "actor", input.ActorID)
		}
		return attendance.SaveOutcome{}, err
	}
	recorder(deps.Metrics).RecordRosterSave(out.Changed)

	slog.Info("attendance_event", "event", "roster_saved",
		"bucket", bucket.String(),
		"items", len(entries),
		"changed", out.Changed,
		"version", out.Version,
		"actor", input.ActorID,
	)
	return out, nil
}

// toEntries validates raw items at the boundary.
func toEntries(items []RosterItem) ([]attendance.Entry, error) {
	entries := make([]attendance.Entry, 0, len(items))
	for i, item := range items {
		e, err := attendance.NewEntry(item.MemberID, item.Status, item.Notes)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// requireMembers fails with ErrUnknownMember when any entry names a missing member.
func requireMembers(ctx context.Context, store RosterMemberStore, entries []attendance.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	missing, err := store.MissingIDs(ctx, attendance.MemberIDs(entries))
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", attendance.ErrUnknownMember, missing)
	}
	return nil
}

func recorder(r metrics.Recorder) metrics.Recorder {
	if r == nil {
		return metrics.Nop{}
	}
	return r
}
