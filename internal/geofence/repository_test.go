package geofence

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/storage"
)

func TestRepository_AddPersistsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	repo, err := NewRepository(ctx, store)
	require.NoError(t, err)

	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("1"), fence("2")}))
	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("3")}))

	assert.Equal(t, []string{"1", "2", "3"}, domain.IDs(repo.List()))

	reloaded, err := NewRepository(ctx, store)
	require.NoError(t, err)
	if diff := cmp.Diff(repo.List(), reloaded.List()); diff != "" {
		t.Errorf("reloaded set mismatch (-want +got):\n%s", diff)
	}
}

func TestRepository_AddIdenticalIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(ctx, storage.NewMemory())
	require.NoError(t, err)

	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("A")}))
	before := repo.List()

	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("A"), fence("A")}))
	assert.Equal(t, before, repo.List())
}

func TestRepository_AddSameIDReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(ctx, storage.NewMemory())
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("A"), fence("B")}))

	moved := fence("A")
	moved.Radius = 500
	require.NoError(t, repo.Add(ctx, []domain.Geofence{moved}))

	got := repo.List()
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].ID)
	assert.InDelta(t, 500, got[0].Radius, 0)
}

func TestRepository_EmptyAddStillPersists(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	repo, err := NewRepository(ctx, store)
	require.NoError(t, err)

	require.NoError(t, repo.Add(ctx, nil))
	raw, err := store.Load(ctx, geofencesKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestRepository_RemoveAll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	repo, err := NewRepository(ctx, store)
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("1")}))

	require.NoError(t, repo.RemoveAll(ctx))
	assert.Empty(t, repo.List())

	raw, err := store.Load(ctx, geofencesKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(ctx, storage.NewMemory())
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("1"), fence("2")}))

	g, ok := repo.GetByID("2")
	assert.True(t, ok)
	assert.Equal(t, fence("2"), g)

	_, ok = repo.GetByID("missing")
	assert.False(t, ok)
}

func TestRepository_WriteFailurePropagatesAndKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Memory: storage.NewMemory()}
	repo, err := NewRepository(ctx, store)
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("1")}))

	store.fail = true
	err = repo.Add(ctx, []domain.Geofence{fence("2")})
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, []string{"1"}, domain.IDs(repo.List()))

	require.ErrorIs(t, repo.RemoveAll(ctx), errDiskFull)
	assert.Len(t, repo.List(), 1)
}

func TestRepository_LoadsOnceAtConstruction(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Store(ctx, geofencesKey, `[{"identifier":"X","latitude":1,"longitude":2,"radius":50,"loiteringDelay":0,"notifyOnEntry":true,"notifyOnExit":false,"notifyOnDwell":false}]`))

	repo, err := NewRepository(ctx, store)
	require.NoError(t, err)

	// A write behind the repository's back is not observed.
	require.NoError(t, store.Store(ctx, geofencesKey, `[]`))
	assert.Equal(t, []string{"X"}, domain.IDs(repo.List()))
}

func TestRepository_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Store(ctx, geofencesKey, `{not json`))

	_, err := NewRepository(ctx, store)
	require.Error(t, err)
}

func TestRepository_ListIsACopy(t *testing.T) {
	ctx := context.Background()
	repo, err := NewRepository(ctx, storage.NewMemory())
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, []domain.Geofence{fence("1")}))

	got := repo.List()
	got[0].ID = "mutated"
	assert.Equal(t, "1", repo.List()[0].ID)
}

func TestActivationStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	a, err := NewActivationStore(ctx, store)
	require.NoError(t, err)
	assert.False(t, a.Active(), "defaults to inactive")

	require.NoError(t, a.SetActive(ctx, true))
	assert.True(t, a.Active())

	reloaded, err := NewActivationStore(ctx, store)
	require.NoError(t, err)
	assert.True(t, reloaded.Active())
}

func TestActivationStore_WriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Memory: storage.NewMemory(), fail: true}
	a, err := NewActivationStore(ctx, store)
	require.NoError(t, err)

	require.ErrorIs(t, a.SetActive(ctx, true), errDiskFull)
	assert.False(t, a.Active())
}

func TestActivationStore_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Store(ctx, activatedKey, "yes please"))

	_, err := NewActivationStore(ctx, store)
	require.Error(t, err)
}
