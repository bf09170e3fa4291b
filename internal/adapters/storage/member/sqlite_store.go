package member

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"chapel/internal/adapters/storage"
	domain "chapel/internal/domain/member"
)

const memberColumns = "id, first_name, last_name, email, user_id, congregation, birthday, baptism_date"

// idChunk keeps IN lists well under the sqlite variable limit.
const idChunk = 500

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new member store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByUserID retrieves the member strongly linked to a login identity.
// PRE: userID is non-empty
// POST: Returns the entity or an error wrapping sql.ErrNoRows
func (s *SQLiteStore) GetByUserID(ctx context.Context, userID string) (domain.Member, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM member WHERE user_id = ?", userID)
	return scanOne(row)
}

// GetUnlinkedByEmail retrieves a member with a matching email that is not
// linked to any login identity. Comparison is trimmed and case-insensitive.
// PRE: email is non-empty
// POST: Never returns a member whose user_id is set
func (s *SQLiteStore) GetUnlinkedByEmail(ctx context.Context, email string) (domain.Member, error) {
	query := "SELECT " + memberColumns + " FROM member" +
		" WHERE user_id IS NULL AND lower(trim(email)) = ?" +
		" ORDER BY id LIMIT 1"
	row := s.db.QueryRowContext(ctx, query, domain.NormalizeEmail(email))
	return scanOne(row)
}

// ListRoster returns every member ordered by last name, first name, then id.
func (s *SQLiteStore) ListRoster(ctx context.Context) ([]domain.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM member ORDER BY last_name COLLATE NOCASE, first_name COLLATE NOCASE, id")
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	results := []domain.Member{}
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// MissingIDs returns the ids from the input that have no member row,
// in input order without duplicates.
func (s *SQLiteStore) MissingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	found := make(map[int64]bool, len(ids))
	for start := 0; start < len(ids); start += idChunk {
		end := min(start+idChunk, len(ids))
		chunk := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx, "SELECT id FROM member WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, fmt.Errorf("check member ids: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			found[id] = true
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
			found[id] = true
		}
	}
	return missing, nil
}

// Save inserts a member when ID is zero and updates it otherwise.
// POST: Returns the member with its assigned ID, or the validation error
func (s *SQLiteStore) Save(ctx context.Context, value domain.Member) (domain.Member, error) {
	if err := value.Validate(); err != nil {
		return domain.Member{}, err
	}
	args := []any{
		value.FirstName,
		value.LastName,
		nullable(strings.TrimSpace(value.Email)),
		nullable(value.UserID),
		value.Congregation,
		nullable(value.Birthday),
		nullable(value.BaptismDate),
	}

	if value.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO member (first_name, last_name, email, user_id, congregation, birthday, baptism_date) VALUES (?, ?, ?, ?, ?, ?, ?)",
			args...)
		if err != nil {
			return domain.Member{}, fmt.Errorf("insert member: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return domain.Member{}, fmt.Errorf("insert member id: %w", err)
		}
		value.ID = id
		return value, nil
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE member SET first_name = ?, last_name = ?, email = ?, user_id = ?, congregation = ?, birthday = ?, baptism_date = ? WHERE id = ?",
		append(args, value.ID)...)
	if err != nil {
		return domain.Member{}, fmt.Errorf("update member %d: %w", value.ID, err)
	}
	return value, nil
}

func scanOne(row *sql.Row) (domain.Member, error) {
	m, err := scanMember(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Member{}, fmt.Errorf("member not found: %w", err)
	}
	return m, err
}

// scanMember extracts a Member from a row scanner function.
func scanMember(scan func(dest ...any) error) (domain.Member, error) {
	var m domain.Member
	var email, userID, birthday, baptism sql.NullString
	if err := scan(&m.ID, &m.FirstName, &m.LastName, &email, &userID, &m.Congregation, &birthday, &baptism); err != nil {
		return domain.Member{}, err
	}
	m.Email = email.String
	m.UserID = userID.String
	m.Birthday = birthday.String
	m.BaptismDate = baptism.String
	return m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
