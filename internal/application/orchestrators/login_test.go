package orchestrators

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"chapel/internal/domain/account"
)

// mockAccountStore implements AccountStoreForLogin and AccountStoreForCreate.
type mockAccountStore struct {
	byEmail map[string]account.Account
	err     error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{byEmail: map[string]account.Account{}}
}

// GetByEmail implements AccountStoreForLogin.
func (m *mockAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	if m.err != nil {
		return account.Account{}, m.err
	}
	a, ok := m.byEmail[email]
	if !ok {
		return account.Account{}, fmt.Errorf("account not found: %w", sql.ErrNoRows)
	}
	return a, nil
}

// Save implements AccountStoreForLogin.
func (m *mockAccountStore) Save(_ context.Context, a account.Account) error {
	m.byEmail[a.Email] = a
	return nil
}

// Count implements AccountStoreForCreate.
func (m *mockAccountStore) Count(_ context.Context) (int, error) {
	return len(m.byEmail), nil
}

var fixedNow = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }

// TestExecuteLogin covers success, wrong password and lockout.
func TestExecuteLogin(t *testing.T) {
	store := newMockAccountStore()
	deps := CreateAccountDeps{AccountStore: store, Now: fixedNow}
	if _, err := ExecuteCreateAccount(context.Background(), CreateAccountInput{
		Email: "usher@chapel.test", Password: "correct-horse-battery", Role: account.RoleStaff,
	}, deps); err != nil {
		t.Fatalf("create: %v", err)
	}
	loginDeps := LoginDeps{AccountStore: store, Now: fixedNow}

	id, err := ExecuteLogin(context.Background(), LoginInput{Email: "usher@chapel.test", Password: "correct-horse-battery"}, loginDeps)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if id.Role != account.RoleStaff || !id.IsStaff() {
		t.Errorf("identity = %+v", id)
	}

	for i := 0; i < account.MaxFailedLogins; i++ {
		_, err := ExecuteLogin(context.Background(), LoginInput{Email: "usher@chapel.test", Password: "wrong-password-123"}, loginDeps)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v", i+1, err)
		}
	}
	_, err = ExecuteLogin(context.Background(), LoginInput{Email: "usher@chapel.test", Password: "correct-horse-battery"}, loginDeps)
	if !errors.Is(err, ErrAccountLocked) {
		t.Errorf("error after lockout = %v, want ErrAccountLocked", err)
	}

	if _, err := ExecuteLogin(context.Background(), LoginInput{Email: "nobody@chapel.test", Password: "x"}, loginDeps); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v", err)
	}
}

// TestExecuteLogin_StoreFailure verifies only a missing account reads as bad
// credentials; other store errors propagate.
func TestExecuteLogin_StoreFailure(t *testing.T) {
	input := LoginInput{Email: "usher@chapel.test", Password: "correct-horse-battery"}

	_, err := ExecuteLogin(context.Background(), input, LoginDeps{AccountStore: newMockAccountStore(), Now: fixedNow})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", err)
	}

	outage := errors.New("database is locked")
	store := newMockAccountStore()
	store.err = outage
	_, err = ExecuteLogin(context.Background(), input, LoginDeps{AccountStore: store, Now: fixedNow})
	if !errors.Is(err, outage) {
		t.Errorf("store failure error = %v, want wrapped outage", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("store failure must not read as bad credentials")
	}
}

// TestExecuteSeedAdmin seeds exactly once.
func TestExecuteSeedAdmin(t *testing.T) {
	store := newMockAccountStore()
	deps := CreateAccountDeps{AccountStore: store, Now: fixedNow}

	if err := ExecuteSeedAdmin(context.Background(), deps, "admin@chapel.test", "admin-password-123"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ExecuteSeedAdmin(context.Background(), deps, "other@chapel.test", "admin-password-123"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Errorf("accounts = %d, want 1", n)
	}
	if store.byEmail["admin@chapel.test"].Role != account.RoleAdmin {
		t.Error("seeded account should be admin")
	}
}

// TestExecuteCreateAccount_Duplicate rejects a second account for one email.
func TestExecuteCreateAccount_Duplicate(t *testing.T) {
	store := newMockAccountStore()
	deps := CreateAccountDeps{AccountStore: store}
	input := CreateAccountInput{Email: "a@chapel.test", Password: "long-enough-pass", Role: account.RoleMember}

	if _, err := ExecuteCreateAccount(context.Background(), input, deps); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ExecuteCreateAccount(context.Background(), input, deps); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Errorf("duplicate error = %v", err)
	}
}
