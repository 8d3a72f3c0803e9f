package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/digilearn/moodle-sync-api/internal/models"
	"github.com/digilearn/moodle-sync-api/pkg/moodle"
)

func TestSyncUsersCreatesAccountsAndShadows(t *testing.T) {
	accounts := newMemoryAccountRepo()
	shadows := newMemoryMoodleUserRepo()

	api := &fakeMoodleAPI{
		users: func(ctx context.Context) ([]moodle.RemoteUser, error) {
			return []moodle.RemoteUser{
				{ID: 1, FullName: "Ada Lovelace", Username: "ada", Email: "ada@example.com"},
				{ID: 2, FullName: "Grace Hopper", Email: "grace@example.com"},
			}, nil
		},
	}

	svc := NewUserSyncService(api, accounts, shadows, zerolog.Nop())

	result, err := svc.SyncUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.AccountsCreated)
	require.Equal(t, 2, result.ShadowsCreated)
	require.Equal(t, 0, result.Skipped)

	account, err := accounts.GetByMoodleID(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "grace@example.com", account.Login, "login falls back to email when username is empty")

	shadow, err := shadows.GetByMoodleID(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, shadow.AccountID)
	linked, err := accounts.GetByID(context.Background(), *shadow.AccountID)
	require.NoError(t, err)
	require.Equal(t, int64(1), *linked.MoodleID)
}

func TestSyncUsersSkipsRecordsMissingIDOrEmail(t *testing.T) {
	accounts := newMemoryAccountRepo()
	shadows := newMemoryMoodleUserRepo()

	api := &fakeMoodleAPI{
		users: func(ctx context.Context) ([]moodle.RemoteUser, error) {
			return []moodle.RemoteUser{
				{ID: 0, FullName: "No ID", Email: "noid@example.com"},
				{ID: 3, FullName: "No Email"},
				{ID: 4, FullName: "Fine", Email: "fine@example.com"},
			}, nil
		},
	}

	svc := NewUserSyncService(api, accounts, shadows, zerolog.Nop())

	result, err := svc.SyncUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Skipped)
	require.Equal(t, 1, result.AccountsCreated)
	require.Equal(t, 1, result.ShadowsCreated)
}

func TestSyncUsersClaimsExistingAccountByEmail(t *testing.T) {
	accounts := newMemoryAccountRepo()
	existing := accounts.add(models.Account{Name: "Old Name", Login: "ada", Email: "Ada@Example.com"})
	shadows := newMemoryMoodleUserRepo()

	api := &fakeMoodleAPI{
		users: func(ctx context.Context) ([]moodle.RemoteUser, error) {
			return []moodle.RemoteUser{{ID: 9, FullName: "Ada Lovelace", Username: "ada", Email: "ada@example.com"}}, nil
		},
	}

	svc := NewUserSyncService(api, accounts, shadows, zerolog.Nop())

	result, err := svc.SyncUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.AccountsCreated)
	require.Equal(t, 1, result.AccountsUpdated)
	require.Equal(t, 1, result.ShadowsCreated)

	claimed, err := accounts.GetByID(context.Background(), existing.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed.MoodleID)
	require.Equal(t, int64(9), *claimed.MoodleID)
	require.Equal(t, "Ada Lovelace", claimed.Name)
}

func TestSyncUsersRefreshesExistingShadow(t *testing.T) {
	accounts := newMemoryAccountRepo()
	account := accounts.add(models.Account{Name: "Ada", Login: "ada", Email: "ada@example.com", MoodleID: int64Ptr(9)})
	shadows := newMemoryMoodleUserRepo()
	shadow := shadows.add(models.MoodleUser{FullName: "Stale Name", Login: "ada", Email: "ada@example.com", MoodleID: 9, AccountID: &account.ID})

	api := &fakeMoodleAPI{
		users: func(ctx context.Context) ([]moodle.RemoteUser, error) {
			return []moodle.RemoteUser{{ID: 9, FullName: "Ada Lovelace", Username: "ada", Email: "ada@example.com"}}, nil
		},
	}

	svc := NewUserSyncService(api, accounts, shadows, zerolog.Nop())

	result, err := svc.SyncUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.ShadowsUpdated)
	require.Equal(t, 0, result.ShadowsCreated)

	refreshed := shadows.users[shadow.ID]
	require.Equal(t, "Ada Lovelace", refreshed.FullName)
	require.NotNil(t, refreshed.LastSyncedAt)
}

func TestSyncUsersBatchFailureDegradesPerRecord(t *testing.T) {
	accounts := newMemoryAccountRepo()
	accounts.batchErr = errors.New("duplicate key in batch")
	accounts.createErr = func(account *models.Account) error {
		if strings.HasPrefix(account.Email, "bad@") {
			return errors.New("unique constraint violation")
		}
		return nil
	}
	shadows := newMemoryMoodleUserRepo()

	api := &fakeMoodleAPI{
		users: func(ctx context.Context) ([]moodle.RemoteUser, error) {
			return []moodle.RemoteUser{
				{ID: 1, FullName: "Good", Email: "good@example.com"},
				{ID: 2, FullName: "Bad", Email: "bad@example.com"},
				{ID: 3, FullName: "Also Good", Email: "also@example.com"},
			}, nil
		},
	}

	svc := NewUserSyncService(api, accounts, shadows, zerolog.Nop())

	result, err := svc.SyncUsers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.AccountsCreated)
	require.Equal(t, 1, result.IdentityConflicts)
	// The failed account's shadow is skipped, the others still land.
	require.Equal(t, 2, result.ShadowsCreated)

	_, err = shadows.GetByMoodleID(context.Background(), 2)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSyncUsersPropagatesDirectoryFailure(t *testing.T) {
	api := &fakeMoodleAPI{
		users: func(ctx context.Context) ([]moodle.RemoteUser, error) {
			return nil, &moodle.APIError{Kind: moodle.KindConnectionFailure, Function: moodle.FnGetUsers}
		},
	}

	svc := NewUserSyncService(api, newMemoryAccountRepo(), newMemoryMoodleUserRepo(), zerolog.Nop())

	_, err := svc.SyncUsers(context.Background())
	var apiErr *moodle.APIError
	require.ErrorAs(t, err, &apiErr)
}
