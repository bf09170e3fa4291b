package member

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"chapel/internal/adapters/storage/storagetest"
	domain "chapel/internal/domain/member"
)

func seed(t *testing.T, store *SQLiteStore, m domain.Member) domain.Member {
	t.Helper()
	saved, err := store.Save(context.Background(), m)
	if err != nil {
		t.Fatalf("Save(%s %s): %v", m.FirstName, m.LastName, err)
	}
	return saved
}

// TestSQLiteStore_ListRosterOrder verifies last name, first name ordering.
func TestSQLiteStore_ListRosterOrder(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	seed(t, store, domain.Member{FirstName: "Ruth", LastName: "Moabite"})
	seed(t, store, domain.Member{FirstName: "Boaz", LastName: "bethlehem"})
	seed(t, store, domain.Member{FirstName: "Anna", LastName: "Moabite"})

	got, err := store.ListRoster(context.Background())
	if err != nil {
		t.Fatalf("ListRoster: %v", err)
	}
	want := []string{"Boaz bethlehem", "Anna Moabite", "Ruth Moabite"}
	if len(got) != len(want) {
		t.Fatalf("ListRoster len = %d, want %d", len(got), len(want))
	}
	for i, name := range want {
		if full := got[i].FirstName + " " + got[i].LastName; full != name {
			t.Errorf("roster[%d] = %q, want %q", i, full, name)
		}
	}
}

// TestSQLiteStore_ListRosterEmpty returns a non-nil empty slice.
func TestSQLiteStore_ListRosterEmpty(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	got, err := store.ListRoster(context.Background())
	if err != nil {
		t.Fatalf("ListRoster: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListRoster = %v, want empty non-nil", got)
	}
}

// TestSQLiteStore_IdentityLookups covers strong link and unlinked email fallback.
func TestSQLiteStore_IdentityLookups(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	ctx := context.Background()
	linked := seed(t, store, domain.Member{FirstName: "Linked", LastName: "One", Email: "shared@example.com", UserID: "acct-x"})
	unlinked := seed(t, store, domain.Member{FirstName: "Loose", LastName: "Two", Email: "Loose@Example.com"})

	got, err := store.GetByUserID(ctx, "acct-x")
	if err != nil || got.ID != linked.ID {
		t.Errorf("GetByUserID = %+v, %v; want member %d", got, err, linked.ID)
	}

	got, err = store.GetUnlinkedByEmail(ctx, "  loose@example.COM")
	if err != nil || got.ID != unlinked.ID {
		t.Errorf("GetUnlinkedByEmail = %+v, %v; want member %d", got, err, unlinked.ID)
	}

	if _, err := store.GetUnlinkedByEmail(ctx, "shared@example.com"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("linked member must not match by email, got err = %v", err)
	}
	if _, err := store.GetByUserID(ctx, "acct-missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetByUserID(missing) error = %v", err)
	}
}

// TestSQLiteStore_MissingIDs reports unknown ids once each.
func TestSQLiteStore_MissingIDs(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	a := seed(t, store, domain.Member{FirstName: "A", LastName: "A"})
	b := seed(t, store, domain.Member{FirstName: "B", LastName: "B"})

	missing, err := store.MissingIDs(context.Background(), []int64{a.ID, 404, b.ID, 404, 405})
	if err != nil {
		t.Fatalf("MissingIDs: %v", err)
	}
	if len(missing) != 2 || missing[0] != 404 || missing[1] != 405 {
		t.Errorf("MissingIDs = %v, want [404 405]", missing)
	}

	missing, err = store.MissingIDs(context.Background(), nil)
	if err != nil || len(missing) != 0 {
		t.Errorf("MissingIDs(nil) = %v, %v", missing, err)
	}
}

// TestSQLiteStore_SaveUpdate links an existing member.
func TestSQLiteStore_SaveUpdate(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	ctx := context.Background()
	m := seed(t, store, domain.Member{FirstName: "Ruth", LastName: "Moabite", Birthday: "1990-01-02"})

	m.UserID = "acct-7"
	if _, err := store.Save(ctx, m); err != nil {
		t.Fatalf("Save update: %v", err)
	}
	got, err := store.GetByUserID(ctx, "acct-7")
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if got.ID != m.ID || got.Birthday != "1990-01-02" || got.Email != "" {
		t.Errorf("GetByUserID = %+v", got)
	}
}

// TestSQLiteStore_SaveRejectsInvalid verifies nothing is written for an invalid member.
func TestSQLiteStore_SaveRejectsInvalid(t *testing.T) {
	store := NewSQLiteStore(storagetest.OpenDB(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		member  domain.Member
		wantErr error
	}{
		{"missing last name", domain.Member{FirstName: "Naomi"}, domain.ErrEmptyName},
		{"bad email", domain.Member{FirstName: "Naomi", LastName: "Elimelech", Email: "naomi"}, domain.ErrInvalidEmail},
		{"bad birthday", domain.Member{FirstName: "Naomi", LastName: "Elimelech", Birthday: "1990-02-30"}, domain.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Save(ctx, tt.member); !errors.Is(err, tt.wantErr) {
				t.Errorf("Save error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := store.ListRoster(ctx)
	if err != nil || len(got) != 0 {
		t.Errorf("roster after rejected saves = %v, %v", got, err)
	}
}
