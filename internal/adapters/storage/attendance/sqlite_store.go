package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chapel/internal/adapters/storage"
	domain "chapel/internal/domain/attendance"
)

const recordColumns = "a.id, a.member_id, a.date, a.type, a.status, a.notes, a.updated_at"

// upsertQuery writes one record by (member, date, type). Rows whose status
// and notes already match are left alone so repeated saves change nothing.
const upsertQuery = `INSERT INTO attendance (id, member_id, date, type, status, notes, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (member_id, date, type) DO UPDATE SET
	status = excluded.status,
	notes = excluded.notes,
	updated_at = excluded.updated_at
WHERE attendance.status IS NOT excluded.status OR attendance.notes IS NOT excluded.notes`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    storage.SQLDB
	now   func() time.Time
	newID func() string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new attendance store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now, newID: uuid.NewString}
}

// ListBucket returns every record in one (date, type) bucket ordered by member id.
func (s *SQLiteStore) ListBucket(ctx context.Context, bucket domain.Bucket) ([]domain.Record, error) {
	return listBucket(ctx, s.db, bucket)
}

// BucketVersion returns the bucket's version, or 0 if it was never written.
func (s *SQLiteStore) BucketVersion(ctx context.Context, bucket domain.Bucket) (int64, error) {
	return bucketVersion(ctx, s.db, bucket)
}

// SaveBucket upserts entries into one bucket. Members absent from entries are
// untouched. When a member appears more than once the last entry wins.
// PRE: bucket and entries are validated; every member exists
// POST: All upserts are committed or none are; the version moves only when a row changed
func (s *SQLiteStore) SaveBucket(ctx context.Context, bucket domain.Bucket, entries []domain.Entry, expectedVersion *int64) (domain.SaveOutcome, error) {
	var out domain.SaveOutcome
	err := storage.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		version, err := checkVersion(ctx, tx, bucket, expectedVersion)
		if err != nil {
			return err
		}
		changed, err := s.upsertAll(ctx, tx, bucket, entries)
		if err != nil {
			return err
		}
		if changed > 0 {
			if version, err = s.bumpVersion(ctx, tx, bucket); err != nil {
				return err
			}
		}
		out = domain.SaveOutcome{Changed: changed, Version: version}
		return nil
	})
	if err != nil {
		return domain.SaveOutcome{}, fmt.Errorf("save bucket %s: %w", bucket, err)
	}
	return out, nil
}

// Relocate deletes the source bucket and writes the destination state in one
// transaction. With CopySource the source rows, read inside the transaction,
// become the destination state.
// PRE: relocation buckets and entries are validated
// POST: Source bucket is empty unless it equals the destination; destination holds the entries
func (s *SQLiteStore) Relocate(ctx context.Context, r domain.Relocation) (domain.RelocationOutcome, error) {
	var out domain.RelocationOutcome
	err := storage.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := checkVersion(ctx, tx, r.From, r.ExpectedVersion); err != nil {
			return err
		}

		entries := r.Entries
		if r.CopySource {
			source, err := listBucket(ctx, tx, r.From)
			if err != nil {
				return err
			}
			entries = make([]domain.Entry, 0, len(source))
			for _, rec := range source {
				entries = append(entries, domain.Entry{MemberID: rec.MemberID, Status: rec.Status, Notes: rec.Notes})
			}
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM attendance WHERE date = ? AND type = ?", r.From.Date, string(r.From.Type))
		if err != nil {
			return fmt.Errorf("delete source: %w", err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return err
		}

		merged := lastWins(entries)
		if _, err := s.upsertAll(ctx, tx, r.To, merged); err != nil {
			return err
		}

		out.Deleted = int(deleted)
		out.Moved = len(merged)
		if out.FromVersion, err = s.bumpVersion(ctx, tx, r.From); err != nil {
			return err
		}
		out.ToVersion = out.FromVersion
		if r.To != r.From {
			if out.ToVersion, err = s.bumpVersion(ctx, tx, r.To); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.RelocationOutcome{}, fmt.Errorf("relocate %s to %s: %w", r.From, r.To, err)
	}
	return out, nil
}

// ListHistory returns records joined with member identity, sorted by date
// descending then last name, first name and type. A zero Limit returns every row.
func (s *SQLiteStore) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	var qb strings.Builder
	qb.WriteString("SELECT " + recordColumns + ", m.first_name, m.last_name, COALESCE(m.email, '')")
	qb.WriteString(" FROM attendance a JOIN member m ON m.id = a.member_id")
	where, args := historyWhere(filter)
	qb.WriteString(where)
	qb.WriteString(" ORDER BY a.date DESC, m.last_name COLLATE NOCASE ASC, m.first_name COLLATE NOCASE ASC, a.type ASC, a.member_id ASC")
	if filter.Limit > 0 {
		qb.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	results := []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		var updatedAt string
		if err := rows.Scan(
			&e.ID, &e.MemberID, &e.Date, &e.Type, &e.Status, &e.Notes, &updatedAt,
			&e.FirstName, &e.LastName, &e.Email,
		); err != nil {
			return nil, err
		}
		e.UpdatedAt, _ = storage.ParseTime(updatedAt)
		results = append(results, e)
	}
	return results, rows.Err()
}

// CountHistory counts rows matching filter, ignoring Limit and Offset.
func (s *SQLiteStore) CountHistory(ctx context.Context, filter domain.HistoryFilter) (int, error) {
	where, args := historyWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance a JOIN member m ON m.id = a.member_id"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// ListByMember returns one member's records in the window, ordered by date
// ascending with type as the tiebreak.
func (s *SQLiteStore) ListByMember(ctx context.Context, memberID int64, filter domain.MemberFilter) ([]domain.Record, error) {
	var qb strings.Builder
	args := []any{memberID}
	qb.WriteString("SELECT " + recordColumns + " FROM attendance a WHERE a.member_id = ?")
	if filter.Window.Bounded {
		qb.WriteString(" AND a.date >= ? AND a.date <= ?")
		args = append(args, filter.Window.From, filter.Window.To)
	}
	if filter.Type != "" {
		qb.WriteString(" AND a.type = ?")
		args = append(args, string(filter.Type))
	}
	qb.WriteString(" ORDER BY a.date ASC, a.type ASC")

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list member %d records: %w", memberID, err)
	}
	return scanRecords(rows)
}

func (s *SQLiteStore) upsertAll(ctx context.Context, tx *sql.Tx, bucket domain.Bucket, entries []domain.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	updatedAt := storage.FormatTime(s.now())
	changed := 0
	for _, e := range lastWins(entries) {
		rec := domain.Record{MemberID: e.MemberID, Date: bucket.Date, Type: bucket.Type, Status: e.Status, Notes: e.Notes}
		if err := rec.Validate(); err != nil {
			return 0, fmt.Errorf("member %d: %w", e.MemberID, err)
		}
		res, err := stmt.ExecContext(ctx, s.newID(), rec.MemberID, rec.Date, string(rec.Type), string(rec.Status), rec.Notes, updatedAt)
		if err != nil {
			return 0, fmt.Errorf("upsert member %d: %w", e.MemberID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		changed += int(n)
	}
	return changed, nil
}

func (s *SQLiteStore) bumpVersion(ctx context.Context, tx *sql.Tx, bucket domain.Bucket) (int64, error) {
	var version int64
	err := tx.QueryRowContext(ctx, `INSERT INTO attendance_bucket (date, type, version, updated_at) VALUES (?, ?, 1, ?)
ON CONFLICT (date, type) DO UPDATE SET version = version + 1, updated_at = excluded.updated_at
RETURNING version`, bucket.Date, string(bucket.Type), storage.FormatTime(s.now())).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("bump version %s: %w", bucket, err)
	}
	return version, nil
}

// checkVersion returns the current version and fails with ErrVersionConflict
// when expected is set and differs.
func checkVersion(ctx context.Context, q storage.Querier, bucket domain.Bucket, expected *int64) (int64, error) {
	current, err := bucketVersion(ctx, q, bucket)
	if err != nil {
		return 0, err
	}
	if expected != nil && *expected != current {
		return 0, fmt.Errorf("%w: expected version %d, found %d", domain.ErrVersionConflict, *expected, current)
	}
	return current, nil
}

func bucketVersion(ctx context.Context, q storage.Querier, bucket domain.Bucket) (int64, error) {
	var version int64
	err := q.QueryRowContext(ctx, "SELECT version FROM attendance_bucket WHERE date = ? AND type = ?",
		bucket.Date, string(bucket.Type)).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version %s: %w", bucket, err)
	}
	return version, nil
}

func listBucket(ctx context.Context, q storage.Querier, bucket domain.Bucket) ([]domain.Record, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM attendance a WHERE a.date = ? AND a.type = ? ORDER BY a.member_id",
		bucket.Date, string(bucket.Type))
	if err != nil {
		return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]domain.Record, error) {
	defer rows.Close()
	results := []domain.Record{}
	for rows.Next() {
		var r domain.Record
		var updatedAt string
		if err := rows.Scan(&r.ID, &r.MemberID, &r.Date, &r.Type, &r.Status, &r.Notes, &updatedAt); err != nil {
			return nil, err
		}
		r.UpdatedAt, _ = storage.ParseTime(updatedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

func historyWhere(f domain.HistoryFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.From != "" {
		clauses = append(clauses, "a.date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "a.date <= ?")
		args = append(args, f.To)
	}
	if f.Type != "" {
		clauses = append(clauses, "a.type = ?")
		args = append(args, string(f.Type))
	}
	if f.MemberID > 0 {
		clauses = append(clauses, "a.member_id = ?")
		args = append(args, f.MemberID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// lastWins collapses duplicate members keeping the final entry, in first-seen order.
func lastWins(entries []domain.Entry) []domain.Entry {
	index := make(map[int64]int, len(entries))
	out := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.MemberID]; ok {
			out[i] = e
			continue
		}
		index[e.MemberID] = len(out)
		out = append(out, e)
	}
	return out
}
