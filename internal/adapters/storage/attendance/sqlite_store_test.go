package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"chapel/internal/adapters/storage/storagetest"
	domain "chapel/internal/domain/attendance"
)

var (
	worship10 = domain.Bucket{Date: "2024-03-10", Type: domain.TypeWorship}
	worship17 = domain.Bucket{Date: "2024-03-17", Type: domain.TypeWorship}
	study10   = domain.Bucket{Date: "2024-03-10", Type: domain.TypeBibleStudy}
)

// newTestStore opens a migrated database seeded with members 1..n.
func newTestStore(t *testing.T, names ...string) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db := storagetest.OpenDB(t)
	for i, last := range names {
		_, err := db.Exec("INSERT INTO member (id, first_name, last_name) VALUES (?, ?, ?)", i+1, fmt.Sprintf("F%d", i+1), last)
		if err != nil {
			t.Fatalf("seed member: %v", err)
		}
	}
	return NewSQLiteStore(db), db
}

func entries(statuses ...domain.Status) []domain.Entry {
	out := make([]domain.Entry, len(statuses))
	for i, st := range statuses {
		out[i] = domain.Entry{MemberID: int64(i + 1), Status: st}
	}
	return out
}

func countRows(t *testing.T, db *sql.DB, where string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM attendance WHERE "+where, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// TestSaveBucket_UpsertKeepsOneRowPerKey verifies uniqueness across repeated saves.
func TestSaveBucket_UpsertKeepsOneRowPerKey(t *testing.T) {
	store, db := newTestStore(t, "Adams", "Baker", "Clark")
	ctx := context.Background()

	if _, err := store.SaveBucket(ctx, worship10, entries(domain.StatusPresent, domain.StatusPresent, domain.StatusAbsent), nil); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := store.SaveBucket(ctx, worship10, entries(domain.StatusAbsent, domain.StatusPresent), nil); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var dupes int
	err := db.QueryRow("SELECT COUNT(*) FROM (SELECT member_id FROM attendance GROUP BY member_id, date, type HAVING COUNT(*) > 1)").Scan(&dupes)
	if err != nil {
		t.Fatalf("dupe check: %v", err)
	}
	if dupes != 0 {
		t.Errorf("found %d duplicated keys", dupes)
	}

	recs, err := store.ListBucket(ctx, worship10)
	if err != nil {
		t.Fatalf("ListBucket: %v", err)
	}
	want := []domain.Status{domain.StatusAbsent, domain.StatusPresent, domain.StatusAbsent}
	if len(recs) != len(want) {
		t.Fatalf("ListBucket len = %d, want %d", len(recs), len(want))
	}
	for i, st := range want {
		if recs[i].Status != st {
			t.Errorf("member %d status = %s, want %s (partial save must leave others untouched)", recs[i].MemberID, recs[i].Status, st)
		}
	}
}

// TestSaveBucket_Idempotent verifies repeating identical items changes nothing.
func TestSaveBucket_Idempotent(t *testing.T) {
	store, _ := newTestStore(t, "Adams", "Baker")
	ctx := context.Background()
	items := []domain.Entry{{MemberID: 1, Status: domain.StatusPresent, Notes: "greeter"}, {MemberID: 2, Status: domain.StatusAbsent}}

	first, err := store.SaveBucket(ctx, worship10, items, nil)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if first.Changed != 2 || first.Version != 1 {
		t.Errorf("first outcome = %+v, want Changed=2 Version=1", first)
	}
	before, _ := store.ListBucket(ctx, worship10)

	second, err := store.SaveBucket(ctx, worship10, items, nil)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.Changed != 0 || second.Version != 1 {
		t.Errorf("second outcome = %+v, want Changed=0 Version=1", second)
	}
	after, _ := store.ListBucket(ctx, worship10)
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("record changed on identical save: %+v -> %+v", before[i], after[i])
		}
	}
}

// TestSaveBucket_DuplicateMemberLastWins verifies merge order within one call.
func TestSaveBucket_DuplicateMemberLastWins(t *testing.T) {
	store, _ := newTestStore(t, "Adams")
	ctx := context.Background()
	items := []domain.Entry{{MemberID: 1, Status: domain.StatusPresent}, {MemberID: 1, Status: domain.StatusAbsent, Notes: "left early"}}

	if _, err := store.SaveBucket(ctx, worship10, items, nil); err != nil {
		t.Fatalf("SaveBucket: %v", err)
	}
	recs, _ := store.ListBucket(ctx, worship10)
	if len(recs) != 1 || recs[0].Status != domain.StatusAbsent || recs[0].Notes != "left early" {
		t.Errorf("ListBucket = %+v, want single absent row", recs)
	}
}

// TestSaveBucket_Atomic verifies an unknown member rolls back the whole batch.
func TestSaveBucket_Atomic(t *testing.T) {
	store, db := newTestStore(t, "Adams")
	items := []domain.Entry{{MemberID: 1, Status: domain.StatusPresent}, {MemberID: 99, Status: domain.StatusPresent}}

	if _, err := store.SaveBucket(context.Background(), worship10, items, nil); err == nil {
		t.Fatal("expected foreign key failure")
	}
	if n := countRows(t, db, "1=1"); n != 0 {
		t.Errorf("rows after failed save = %d, want 0", n)
	}
	if v, _ := store.BucketVersion(context.Background(), worship10); v != 0 {
		t.Errorf("version after failed save = %d, want 0", v)
	}
}

// TestSaveBucket_VersionConflict verifies the optimistic guard.
func TestSaveBucket_VersionConflict(t *testing.T) {
	store, _ := newTestStore(t, "Adams")
	ctx := context.Background()
	zero := int64(0)

	if _, err := store.SaveBucket(ctx, worship10, entries(domain.StatusPresent), &zero); err != nil {
		t.Fatalf("guarded save at version 0: %v", err)
	}
	_, err := store.SaveBucket(ctx, worship10, entries(domain.StatusAbsent), &zero)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("stale save error = %v, want ErrVersionConflict", err)
	}
	recs, _ := store.ListBucket(ctx, worship10)
	if recs[0].Status != domain.StatusPresent {
		t.Error("stale save must not write")
	}
}

// TestRelocate_MovesBucket verifies A is emptied and B holds exactly the items.
func TestRelocate_MovesBucket(t *testing.T) {
	store, db := newTestStore(t, "Adams", "Baker", "Clark")
	ctx := context.Background()
	items := entries(domain.StatusPresent, domain.StatusPresent, domain.StatusAbsent)

	if _, err := store.SaveBucket(ctx, worship10, items, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Another type on the same day must survive.
	if _, err := store.SaveBucket(ctx, study10, entries(domain.StatusPresent), nil); err != nil {
		t.Fatalf("seed study: %v", err)
	}

	out, err := store.Relocate(ctx, domain.Relocation{From: worship10, To: worship17, Entries: items})
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if out.Deleted != 3 || out.Moved != 3 {
		t.Errorf("outcome = %+v, want Deleted=3 Moved=3", out)
	}

	src, _ := store.ListHistory(ctx, domain.HistoryFilter{From: "2024-03-10", To: "2024-03-10", Type: domain.TypeWorship})
	if len(src) != 0 {
		t.Errorf("source bucket still has %d rows", len(src))
	}
	dst, _ := store.ListBucket(ctx, worship17)
	if len(dst) != 3 {
		t.Fatalf("destination has %d rows, want 3", len(dst))
	}
	for i, rec := range dst {
		if rec.Status != items[i].Status {
			t.Errorf("member %d status = %s, want %s", rec.MemberID, rec.Status, items[i].Status)
		}
	}
	if n := countRows(t, db, "date = ? AND type = ?", study10.Date, string(study10.Type)); n != 1 {
		t.Errorf("unrelated bucket rows = %d, want 1", n)
	}
}

// TestRelocate_EmptyItemsDeletesSource pins the documented loss case:
// an explicit empty list purges the source and writes nothing.
func TestRelocate_EmptyItemsDeletesSource(t *testing.T) {
	store, db := newTestStore(t, "Adams", "Baker")
	ctx := context.Background()
	if _, err := store.SaveBucket(ctx, worship10, entries(domain.StatusPresent, domain.StatusAbsent), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := store.Relocate(ctx, domain.Relocation{From: worship10, To: worship17, Entries: []domain.Entry{}})
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if out.Deleted != 2 || out.Moved != 0 {
		t.Errorf("outcome = %+v, want Deleted=2 Moved=0", out)
	}
	if n := countRows(t, db, "1=1"); n != 0 {
		t.Errorf("rows after empty relocation = %d, want 0", n)
	}
}

// TestRelocate_CopySource verifies the safe default reads the source inside the transaction.
func TestRelocate_CopySource(t *testing.T) {
	store, _ := newTestStore(t, "Adams", "Baker")
	ctx := context.Background()
	seeded := []domain.Entry{{MemberID: 1, Status: domain.StatusPresent, Notes: "usher"}, {MemberID: 2, Status: domain.StatusAbsent}}
	if _, err := store.SaveBucket(ctx, worship10, seeded, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := store.Relocate(ctx, domain.Relocation{From: worship10, To: worship17, CopySource: true})
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if out.Moved != 2 {
		t.Errorf("Moved = %d, want 2", out.Moved)
	}
	dst, _ := store.ListBucket(ctx, worship17)
	if len(dst) != 2 || dst[0].Notes != "usher" || dst[1].Status != domain.StatusAbsent {
		t.Errorf("destination = %+v", dst)
	}
}

// TestRelocate_MergesIntoDestination verifies last write wins per member at B.
func TestRelocate_MergesIntoDestination(t *testing.T) {
	store, _ := newTestStore(t, "Adams", "Baker")
	ctx := context.Background()
	if _, err := store.SaveBucket(ctx, worship17, []domain.Entry{{MemberID: 1, Status: domain.StatusAbsent}, {MemberID: 2, Status: domain.StatusPresent}}, nil); err != nil {
		t.Fatalf("seed dest: %v", err)
	}

	_, err := store.Relocate(ctx, domain.Relocation{From: worship10, To: worship17, Entries: []domain.Entry{{MemberID: 1, Status: domain.StatusPresent}}})
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	dst, _ := store.ListBucket(ctx, worship17)
	if len(dst) != 2 || dst[0].Status != domain.StatusPresent || dst[1].Status != domain.StatusPresent {
		t.Errorf("destination = %+v, want both present", dst)
	}
}

// TestRelocate_SameBucketReplaces verifies from == to acts as a full replace.
func TestRelocate_SameBucketReplaces(t *testing.T) {
	store, _ := newTestStore(t, "Adams", "Baker")
	ctx := context.Background()
	if _, err := store.SaveBucket(ctx, worship10, entries(domain.StatusPresent, domain.StatusPresent), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := store.Relocate(ctx, domain.Relocation{From: worship10, To: worship10, Entries: []domain.Entry{{MemberID: 2, Status: domain.StatusAbsent}}})
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	recs, _ := store.ListBucket(ctx, worship10)
	if len(recs) != 1 || recs[0].MemberID != 2 || recs[0].Status != domain.StatusAbsent {
		t.Errorf("bucket = %+v, want only member 2 absent", recs)
	}
}

// TestRelocate_VersionConflictLeavesSource verifies a stale guard deletes nothing.
func TestRelocate_VersionConflictLeavesSource(t *testing.T) {
	store, db := newTestStore(t, "Adams")
	ctx := context.Background()
	if _, err := store.SaveBucket(ctx, worship10, entries(domain.StatusPresent), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	stale := int64(0)

	_, err := store.Relocate(ctx, domain.Relocation{From: worship10, To: worship17, CopySource: true, ExpectedVersion: &stale})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("error = %v, want ErrVersionConflict", err)
	}
	if n := countRows(t, db, "date = ?", worship10.Date); n != 1 {
		t.Errorf("source rows = %d, want 1", n)
	}
}

// TestRelocate_FailureAfterDeleteRestoresSource verifies that a write failing
// after the source delete rolls the whole relocation back.
func TestRelocate_FailureAfterDeleteRestoresSource(t *testing.T) {
	store, db := newTestStore(t, "Adams", "Baker")
	ctx := context.Background()
	if _, err := store.SaveBucket(ctx, worship10, entries(domain.StatusPresent, domain.StatusAbsent), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _ := store.BucketVersion(ctx, worship10)

	_, err := store.Relocate(ctx, domain.Relocation{
		From: worship10,
		To:   worship17,
		Entries: []domain.Entry{
			{MemberID: 1, Status: domain.StatusPresent},
			{MemberID: 99, Status: domain.StatusPresent},
		},
	})
	if err == nil {
		t.Fatal("relocate with an unknown member should fail")
	}

	if n := countRows(t, db, "date = ?", worship10.Date); n != 2 {
		t.Errorf("source rows = %d, want 2", n)
	}
	if n := countRows(t, db, "date = ?", worship17.Date); n != 0 {
		t.Errorf("destination rows = %d, want 0", n)
	}
	recs, _ := store.ListBucket(ctx, worship10)
	if len(recs) != 2 || recs[1].Status != domain.StatusAbsent {
		t.Errorf("source bucket = %+v", recs)
	}
	if after, _ := store.BucketVersion(ctx, worship10); after != before {
		t.Errorf("source version = %d, want %d", after, before)
	}
}

// TestSaveBucket_RejectsInvalidRecord verifies the store refuses rows that
// fail record validation and writes nothing.
func TestSaveBucket_RejectsInvalidRecord(t *testing.T) {
	store, db := newTestStore(t, "Adams", "Baker")
	ctx := context.Background()

	tests := []struct {
		name    string
		entries []domain.Entry
		wantErr error
	}{
		{"bad status", []domain.Entry{{MemberID: 1, Status: domain.StatusPresent}, {MemberID: 2, Status: "late"}}, domain.ErrInvalidStatus},
		{"zero member", []domain.Entry{{MemberID: 0, Status: domain.StatusPresent}}, domain.ErrInvalidMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.SaveBucket(ctx, worship10, tt.entries, nil); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if n := countRows(t, db, "1 = 1"); n != 0 {
				t.Errorf("rows written = %d, want 0", n)
			}
		})
	}
}

// TestRelocate_ConcurrentSameSource verifies concurrent copy-source
// relocations between two buckets never produce duplicate or missing rows.
// Each worker reads the source inside its own transaction.
func TestRelocate_ConcurrentSameSource(t *testing.T) {
	store, db := newTestStore(t, "Adams", "Baker", "Clark")
	ctx := context.Background()
	items := entries(domain.StatusPresent, domain.StatusAbsent, domain.StatusPresent)
	if _, err := store.SaveBucket(ctx, worship10, items, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := domain.Relocation{From: worship10, To: worship17, CopySource: true}
			if i%2 == 1 {
				r = domain.Relocation{From: worship17, To: worship10, CopySource: true}
			}
			if _, err := store.Relocate(ctx, r); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Relocate: %v", err)
	}

	total := countRows(t, db, "type = ?", string(domain.TypeWorship))
	if total != 3 {
		t.Errorf("rows across both buckets = %d, want exactly 3", total)
	}
	a := countRows(t, db, "date = ?", worship10.Date)
	b := countRows(t, db, "date = ?", worship17.Date)
	if !(a == 3 && b == 0) && !(a == 0 && b == 3) {
		t.Errorf("rows split across buckets: A=%d B=%d", a, b)
	}
	if present := countRows(t, db, "status = ?", string(domain.StatusPresent)); present != 2 {
		t.Errorf("present rows = %d, want 2", present)
	}
}

// TestListHistory_SortAndFilter verifies ordering and each filter.
func TestListHistory_SortAndFilter(t *testing.T) {
	store, _ := newTestStore(t, "Clark", "Adams", "Baker")
	ctx := context.Background()
	all := entries(domain.StatusPresent, domain.StatusAbsent, domain.StatusPresent)
	for _, b := range []domain.Bucket{worship10, worship17, study10} {
		if _, err := store.SaveBucket(ctx, b, all, nil); err != nil {
			t.Fatalf("seed %s: %v", b, err)
		}
	}

	got, err := store.ListHistory(ctx, domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(got) != 9 {
		t.Fatalf("unfiltered len = %d, want 9", len(got))
	}
	if got[0].Date != "2024-03-17" || got[0].LastName != "Adams" || got[1].LastName != "Baker" || got[2].LastName != "Clark" {
		t.Errorf("first rows = %s/%s, %s, %s", got[0].Date, got[0].LastName, got[1].LastName, got[2].LastName)
	}
	// Same day and member: bible_study sorts before worship.
	if got[3].Date != "2024-03-10" || got[3].LastName != "Adams" || got[3].Type != domain.TypeBibleStudy || got[4].Type != domain.TypeWorship {
		t.Errorf("tiebreak rows = %+v, %+v", got[3], got[4])
	}

	filtered, _ := store.ListHistory(ctx, domain.HistoryFilter{To: "2024-03-10", Type: domain.TypeWorship, MemberID: 1})
	if len(filtered) != 1 || filtered[0].LastName != "Clark" || filtered[0].Date != "2024-03-10" {
		t.Errorf("filtered = %+v", filtered)
	}

	page, _ := store.ListHistory(ctx, domain.HistoryFilter{Limit: 2, Offset: 2})
	if len(page) != 2 || page[0].LastName != "Clark" {
		t.Errorf("page = %+v", page)
	}
	n, err := store.CountHistory(ctx, domain.HistoryFilter{Type: domain.TypeWorship})
	if err != nil || n != 6 {
		t.Errorf("CountHistory = %d, %v; want 6", n, err)
	}
}

// TestListByMember_WindowAndType verifies the analytics read path.
func TestListByMember_WindowAndType(t *testing.T) {
	store, _ := newTestStore(t, "Adams")
	ctx := context.Background()
	for _, b := range []domain.Bucket{worship17, worship10, study10} {
		if _, err := store.SaveBucket(ctx, b, entries(domain.StatusPresent), nil); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := store.ListByMember(ctx, 1, domain.MemberFilter{})
	if err != nil {
		t.Fatalf("ListByMember: %v", err)
	}
	if len(got) != 3 || got[0].Type != domain.TypeBibleStudy || got[1].Type != domain.TypeWorship || got[2].Date != "2024-03-17" {
		t.Errorf("order = %+v", got)
	}

	got, _ = store.ListByMember(ctx, 1, domain.MemberFilter{Window: domain.DayWindow("2024-03-10"), Type: domain.TypeWorship})
	if len(got) != 1 || got[0].Date != worship10.Date || got[0].Type != worship10.Type {
		t.Errorf("filtered = %+v", got)
	}
}
