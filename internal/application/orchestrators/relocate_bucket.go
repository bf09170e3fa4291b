package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"chapel/internal/domain/attendance"
	"chapel/internal/metrics"
)

// RelocateAttendanceStore defines the attendance store interface needed by RelocateBucket.
type RelocateAttendanceStore interface {
	Relocate(ctx context.Context, relocation attendance.Relocation) (attendance.RelocationOutcome, error)
}

// RelocateBucketInput carries input for the relocate orchestrator.
// A nil Items copies the source bucket; a non-nil empty Items deletes it.
type RelocateBucketInput struct {
	FromDate        string
	FromType        string
	ToDate          string
	ToType          string
	Items           []RosterItem
	ExpectedVersion *int64
	ActorID         string
}

// RelocateBucketDeps holds dependencies for RelocateBucket.
type RelocateBucketDeps struct {
	AttendanceStore RelocateAttendanceStore
	MemberStore     RosterMemberStore
	Metrics         metrics.Recorder
}

// ExecuteRelocateBucket moves a whole (date, type) bucket to another (date, type).
// PRE: all four bucket fields are valid
// POST: In one transaction the source bucket is deleted and the destination
// receives Items (or the source rows when Items is nil)
// INVARIANT: Nothing is deleted when validation fails
func ExecuteRelocateBucket(ctx context.Context, input RelocateBucketInput, deps RelocateBucketDeps) (attendance.RelocationOutcome, error) {
	from, err := attendance.NewBucket(input.FromDate, input.FromType)
	if err != nil {
		return attendance.RelocationOutcome{}, err
	}
	to, err := attendance.NewBucket(input.ToDate, input.ToType)
	if err != nil {
		return attendance.RelocationOutcome{}, err
	}

	r := attendance.Relocation{From: from, To: to, ExpectedVersion: input.ExpectedVersion}
	if input.Items == nil {
		r.CopySource = true
	} else {
		if r.Entries, err = toEntries(input.Items); err != nil {
			return attendance.RelocationOutcome{}, err
		}
		if err := requireMembers(ctx, deps.MemberStore, r.Entries); err != nil {
			return attendance.RelocationOutcome{}, err
		}
	}

	out, err := deps.AttendanceStore.Relocate(ctx, r)
	if err != nil {
		if errors.Is(err, attendance.ErrVersionConflict) {
			recorder(deps.Metrics).RecordVersionConflict("relocate")
			slog.Info("attendance_event", "event", "relocate_conflict", "from", from.String(), "actor", input.ActorID)
		}
		return attendance.RelocationOutcome{}, err
	}
	recorder(deps.Metrics).RecordRelocation(out.Moved)

	level := slog.LevelInfo
	if !r.CopySource && len(r.Entries) == 0 && out.Deleted > 0 {
		// Explicit empty list: the source bucket is gone and nothing replaced it.
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "attendance_event", "event", "bucket_relocated",
		"from", from.String(),
		"to", to.String(),
		"copy_source", r.CopySource,
		"deleted", out.Deleted,
		"moved", out.Moved,
		"actor", input.ActorID,
	)
	return out, nil
}
