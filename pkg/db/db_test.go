package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "padlink.db")
	database, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx))
	require.NoError(t, database.Bootstrap(ctx))

	return database
}

func TestOpenAndMigrate(t *testing.T) {
	database := openTestDB(t)

	version, err := database.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)

	// Migrating again is a no-op.
	require.NoError(t, database.Migrate(context.Background()))
}

func TestBootstrap_IsIdempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	needs, err := database.NeedsBootstrap(ctx)
	require.NoError(t, err)
	assert.False(t, needs)

	require.NoError(t, database.Bootstrap(ctx))
}

func TestSettings_DefaultsAndUpdate(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	store := database.Settings()

	s, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	s.ReceiverHost = "192.168.1.20"
	s.PollingRate = 120
	s.RetryInterval = 250 * time.Millisecond
	s.AutoCreateVirtual = false
	require.NoError(t, store.Update(ctx, s))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", got.ReceiverHost)
	assert.Equal(t, 120, got.PollingRate)
	assert.Equal(t, 250*time.Millisecond, got.RetryInterval)
	assert.False(t, got.AutoCreateVirtual)
}

func TestAssignments_SaveLoadDelete(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	store := database.Assignments()

	require.NoError(t, store.SaveAssignment(ctx, "guid-a_0", 1, "xinput"))
	require.NoError(t, store.SaveAssignment(ctx, "guid-b_1", 2, "dinput"))

	loaded, err := store.LoadAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"guid-a_0": 1, "guid-b_1": 2}, loaded)

	require.NoError(t, store.DeleteAssignment(ctx, "guid-a_0"))
	loaded, err = store.LoadAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"guid-b_1": 2}, loaded)

	// Deleting a missing identifier is not an error.
	require.NoError(t, store.DeleteAssignment(ctx, "guid-a_0"))
}

func TestAssignments_UpsertAndNumberSteal(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	store := database.Assignments()

	require.NoError(t, store.SaveAssignment(ctx, "guid-a_0", 1, "xinput"))
	require.NoError(t, store.SaveAssignment(ctx, "guid-b_1", 2, "xinput"))

	// Re-saving the same identifier moves it; re-using a taken number
	// evicts the previous holder.
	require.NoError(t, store.SaveAssignment(ctx, "guid-a_0", 3, "dinput"))
	require.NoError(t, store.SaveAssignment(ctx, "guid-c_2", 2, "xinput"))

	loaded, err := store.LoadAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"guid-a_0": 3, "guid-c_2": 2}, loaded)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "guid-c_2", list[0].Identifier)
	assert.Equal(t, 2, list[0].AssignedNumber)
	assert.Equal(t, "dinput", list[1].InputMethod)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "padlink.db")

	database, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = database.Close() }()

	assert.Equal(t, path, database.Path())
}
