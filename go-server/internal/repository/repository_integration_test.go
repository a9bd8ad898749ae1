//go:build integration

package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/fonsecaaso/linkkeep/go-server/internal/database"
	"github.com/fonsecaaso/linkkeep/go-server/internal/model"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("linkkeep"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func createUser(t *testing.T, repo UserRepository, name string) *model.User {
	t.Helper()
	user := &model.User{Username: name, Email: name + "@x.com", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func createURL(t *testing.T, repo URLRepository, key string, owner *uuid.UUID) *model.URL {
	t.Helper()
	url := &model.URL{Key: key, SecretKey: key + "_secret", TargetURL: "https://example.com", OwnerID: owner}
	require.NoError(t, repo.Create(context.Background(), url))
	return url
}

func TestIntegration_Repositories(t *testing.T) {
	pool := setupPostgres(t)
	users := NewUserRepository(pool, 5*time.Second)
	urls := NewPostgresURLRepository(pool, 5*time.Second)
	ctx := context.Background()

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	t.Run("user defaults and lookups", func(t *testing.T) {
		assert.NotEqual(t, uuid.Nil, alice.ID)
		assert.True(t, alice.IsActive)

		byEmail, err := users.GetByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byEmail.ID)

		byID, err := users.GetByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", byID.Username)

		_, err = users.GetByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("duplicate username and email", func(t *testing.T) {
		err := users.Create(ctx, &model.User{Username: "alice", Email: "other@x.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrDuplicateUsername)

		err = users.Create(ctx, &model.User{Username: "other", Email: "alice@x.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("url defaults and duplicate keys", func(t *testing.T) {
		url := createURL(t, urls, "Ab12Cd34", &alice.ID)
		assert.True(t, url.IsActive)
		assert.Equal(t, int64(0), url.Clicks)

		exists, err := urls.KeyExists(ctx, "Ab12Cd34")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = urls.SecretKeyExists(ctx, "Ab12Cd34_secret")
		require.NoError(t, err)
		assert.True(t, exists)

		dup := &model.URL{Key: "Ab12Cd34", SecretKey: "fresh_secret", TargetURL: "https://example.org"}
		assert.ErrorIs(t, urls.Create(ctx, dup), ErrDuplicateKey)
	})

	t.Run("concurrent increments are all counted", func(t *testing.T) {
		createURL(t, urls, "concurrn", &alice.ID)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := urls.IncrementClicks(ctx, "concurrn")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		url, err := urls.FindByKey(ctx, "concurrn")
		require.NoError(t, err)
		assert.Equal(t, int64(50), url.Clicks)
	})

	t.Run("owner gate on deactivate and delete", func(t *testing.T) {
		url := createURL(t, urls, "gatedkey", &alice.ID)

		_, err := urls.Deactivate(ctx, url.SecretKey, bob.ID)
		assert.ErrorIs(t, err, ErrURLNotFound)
		_, err = urls.Delete(ctx, url.SecretKey, bob.ID)
		assert.ErrorIs(t, err, ErrURLNotFound)

		still, err := urls.FindBySecretKey(ctx, url.SecretKey)
		require.NoError(t, err)
		assert.True(t, still.IsActive)

		deactivated, err := urls.Deactivate(ctx, url.SecretKey, alice.ID)
		require.NoError(t, err)
		assert.False(t, deactivated.IsActive)

		_, err = urls.IncrementClicks(ctx, "gatedkey")
		assert.ErrorIs(t, err, ErrURLNotFound)

		deleted, err := urls.Delete(ctx, url.SecretKey, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, url.ID, deleted.ID)

		_, err = urls.FindByKey(ctx, "gatedkey")
		assert.ErrorIs(t, err, ErrURLNotFound)
	})

	t.Run("anonymous URLs never match an owner", func(t *testing.T) {
		url := createURL(t, urls, "anonkey1", nil)

		_, err := urls.Deactivate(ctx, url.SecretKey, alice.ID)
		assert.ErrorIs(t, err, ErrURLNotFound)
	})

	t.Run("list by owner in creation order", func(t *testing.T) {
		first := createURL(t, urls, "bobfirst", &bob.ID)
		second := createURL(t, urls, "bobsecnd", &bob.ID)

		list, err := urls.ListByOwner(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("deleting a user cascades to owned URLs", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, bob.ID))

		_, err := urls.FindByKey(ctx, "bobfirst")
		assert.ErrorIs(t, err, ErrURLNotFound)
		assert.ErrorIs(t, users.Delete(ctx, bob.ID), ErrUserNotFound)
	})
}
