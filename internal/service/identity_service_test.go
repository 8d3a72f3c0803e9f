package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/digilearn/moodle-sync-api/internal/models"
)

func TestResolvePersonPrefersExistingShadowLink(t *testing.T) {
	accounts := newMemoryAccountRepo()
	shadows := newMemoryMoodleUserRepo()

	account := accounts.add(models.Account{Name: "Ada Lovelace", Login: "ada", Email: "ada@example.com", MoodleID: int64Ptr(11)})
	shadows.add(models.MoodleUser{FullName: "Ada Lovelace", Login: "ada", Email: "ada@example.com", MoodleID: 11, AccountID: &account.ID})

	resolver := NewIdentityService(accounts, shadows, zerolog.Nop())

	shadow, resolved, err := resolver.ResolvePerson(context.Background(), PersonRef{
		MoodleID:    11,
		Email:       "ada@example.com",
		DisplayName: "Ada Lovelace",
		Username:    "ada",
	})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, account.ID, resolved.ID)
	require.NotNil(t, shadow.AccountID)
	require.Equal(t, account.ID, *shadow.AccountID)
	require.NotNil(t, shadow.LastSyncedAt)
	require.Len(t, accounts.accounts, 1, "no account should be created")
}

func TestResolvePersonClaimsUnlinkedAccountByEmail(t *testing.T) {
	accounts := newMemoryAccountRepo()
	shadows := newMemoryMoodleUserRepo()

	account := accounts.add(models.Account{Name: "Grace Hopper", Login: "grace", Email: "Grace@Example.com"})

	resolver := NewIdentityService(accounts, shadows, zerolog.Nop())

	shadow, resolved, err := resolver.ResolvePerson(context.Background(), PersonRef{
		MoodleID:    7,
		Email:       "grace@example.com",
		DisplayName: "Grace Hopper",
		Username:    "ghopper",
	})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, account.ID, resolved.ID)
	require.NotNil(t, resolved.MoodleID)
	require.Equal(t, int64(7), *resolved.MoodleID, "email match should claim the account")
	require.Equal(t, int64(7), shadow.MoodleID)
	require.NotNil(t, shadow.AccountID)
	require.Equal(t, account.ID, *shadow.AccountID)
}

func TestResolvePersonRelinksAccountWithDifferentMoodleID(t *testing.T) {
	accounts := newMemoryAccountRepo()
	shadows := newMemoryMoodleUserRepo()

	account := accounts.add(models.Account{Name: "Alan Turing", Login: "alan", Email: "alan@example.com", MoodleID: int64Ptr(99)})

	resolver := NewIdentityService(accounts, shadows, zerolog.Nop())

	// The new remote identity shares the email but carries a new id. The
	// latest sync wins and relinks the account.
	_, resolved, err := resolver.ResolvePerson(context.Background(), PersonRef{
		MoodleID: 100,
		Email:    "alan@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, account.ID, resolved.ID)
	require.Equal(t, int64(100), *resolved.MoodleID)
}

func TestResolvePersonCreatesMinimalAccount(t *testing.T) {
	accounts := newMemoryAccountRepo()
	shadows := newMemoryMoodleUserRepo()

	resolver := NewIdentityService(accounts, shadows, zerolog.Nop())

	shadow, resolved, err := resolver.ResolvePerson(context.Background(), PersonRef{
		MoodleID:    42,
		Email:       "new@example.com",
		DisplayName: "New Person",
	})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.NotZero(t, resolved.ID)
	require.Equal(t, "new@example.com", resolved.Login, "login falls back to email when username is empty")
	require.Equal(t, int64(42), *resolved.MoodleID)
	require.Equal(t, int64(42), shadow.MoodleID)
	require.Equal(t, resolved.ID, *shadow.AccountID)
}

func TestResolvePersonCreateFailureIsIdentityConflict(t *testing.T) {
	accounts := newMemoryAccountRepo()
	accounts.createErr = func(account *models.Account) error {
		return errors.New("duplicate key value violates unique constraint")
	}
	shadows := newMemoryMoodleUserRepo()

	resolver := NewIdentityService(accounts, shadows, zerolog.Nop())

	_, _, err := resolver.ResolvePerson(context.Background(), PersonRef{MoodleID: 5, Email: "dup@example.com"})
	require.ErrorIs(t, err, ErrIdentityConflict)
}

func TestEnsureShadowForAccountCreatesAndLinks(t *testing.T) {
	accounts := newMemoryAccountRepo()
	shadows := newMemoryMoodleUserRepo()

	account := accounts.add(models.Account{Name: "Ada", Login: "ada", Email: "ada@example.com", MoodleID: int64Ptr(3)})

	resolver := NewIdentityService(accounts, shadows, zerolog.Nop())

	shadow, err := resolver.EnsureShadowForAccount(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, int64(3), shadow.MoodleID)
	require.Equal(t, account.ID, *shadow.AccountID)

	// Second call reuses the row rather than creating a duplicate.
	again, err := resolver.EnsureShadowForAccount(context.Background(), account)
	require.NoError(t, err)
	require.Equal(t, shadow.ID, again.ID)
	require.Len(t, shadows.users, 1)
}

func TestEnsureShadowForAccountRejectsUnlinkedAccount(t *testing.T) {
	resolver := NewIdentityService(newMemoryAccountRepo(), newMemoryMoodleUserRepo(), zerolog.Nop())

	_, err := resolver.EnsureShadowForAccount(context.Background(), models.Account{ID: 1, Email: "x@example.com"})
	require.ErrorIs(t, err, ErrIdentityConflict)
}
