package storage

import (
	"auth_service/internal/models"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storageBackend describes which driver the suite runs against.
// SQLite is always available; Postgres is used when TEST_DATABASE_URL is set.
type storageBackend struct {
	name  string
	setup func(t *testing.T) Storage
}

func storageBackends(t *testing.T) []storageBackend {
	t.Helper()

	backends := []storageBackend{
		{
			name: "sqlite",
			setup: func(t *testing.T) Storage {
				t.Helper()
				st, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "auth.db"))
				require.NoError(t, err)
				t.Cleanup(st.Close)
				return st
			},
		},
	}

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		backends = append(backends, storageBackend{
			name: "postgres",
			setup: func(t *testing.T) Storage {
				t.Helper()
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := MigratePostgres(ctx, dsn); err != nil {
					t.Skipf("cannot migrate postgres: %v", err)
				}
				st, err := NewPostgresStorage(dsn)
				if err != nil {
					t.Skipf("cannot connect to postgres: %v", err)
				}
				_, err = st.db.Exec(ctx, "TRUNCATE TABLE "+usersTable)
				require.NoError(t, err)
				t.Cleanup(st.Close)
				return st
			},
		})
	}

	return backends
}

func newUser(t *testing.T, email string) models.User {
	t.Helper()

	id, err := uuid.NewV4()
	require.NoError(t, err)

	return models.User{
		ID:           id,
		Name:         "user",
		Email:        email,
		PasswordHash: "hash",
	}
}

func TestStorage_CreateAndFind(t *testing.T) {
	for _, backend := range storageBackends(t) {
		t.Run(backend.name, func(t *testing.T) {
			st := backend.setup(t)
			ctx := context.Background()

			created, err := st.CreateUser(ctx, newUser(t, "user1@mail.com"))
			require.NoError(t, err)
			assert.False(t, created.CreatedAt.IsZero())

			byEmail, err := st.GetUserByEmail(ctx, "user1@mail.com")
			require.NoError(t, err)
			assert.Equal(t, created.ID, byEmail.ID)
			assert.Equal(t, "user", byEmail.Name)
			assert.Equal(t, "hash", byEmail.PasswordHash)

			byID, err := st.GetUserByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, "user1@mail.com", byID.Email)

			exists, err := st.ExistsByEmail(ctx, "user1@mail.com")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = st.ExistsByEmail(ctx, "nobody@mail.com")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStorage_DuplicateEmail(t *testing.T) {
	for _, backend := range storageBackends(t) {
		t.Run(backend.name, func(t *testing.T) {
			st := backend.setup(t)
			ctx := context.Background()

			_, err := st.CreateUser(ctx, newUser(t, "dup@mail.com"))
			require.NoError(t, err)

			_, err = st.CreateUser(ctx, newUser(t, "dup@mail.com"))
			assert.ErrorIs(t, err, ErrUserExists)
		})
	}
}

func TestStorage_NotFound(t *testing.T) {
	for _, backend := range storageBackends(t) {
		t.Run(backend.name, func(t *testing.T) {
			st := backend.setup(t)
			ctx := context.Background()

			_, err := st.GetUserByEmail(ctx, "missing@mail.com")
			assert.ErrorIs(t, err, ErrUserNotFound)

			_, err = st.GetUserByID(ctx, uuid.Must(uuid.NewV4()))
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}
}
