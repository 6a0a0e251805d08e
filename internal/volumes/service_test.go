package volumes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openvolume/volcached/internal/database/testutil"
	"github.com/openvolume/volcached/internal/models"
	"github.com/openvolume/volcached/internal/store"
)

func newService(t *testing.T) (*Service, *store.EntryStore) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	entries, err := store.NewEntryStore(db)
	require.NoError(t, err)

	svc, err := NewService(db, entries)
	require.NoError(t, err)
	return svc, entries
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateVolumeInput{
		Name: "image-cache-vol",
		Size: 5,
		Host: "backend-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, models.VolumeStatusAvailable, created.Status)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.EqualValues(t, 5, got.Size)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateVolumeInput{Size: 0, Host: "backend-1"})
	require.Error(t, err)

	_, err = svc.Create(ctx, CreateVolumeInput{Size: 5})
	require.Error(t, err)
}

func TestDeleteCascadesCacheEntry(t *testing.T) {
	svc, entries := newService(t)
	ctx := context.Background()

	vol, err := svc.Create(ctx, CreateVolumeInput{Size: 3, Host: "backend-1"})
	require.NoError(t, err)

	require.NoError(t, entries.Create(ctx, &models.ImageVolumeEntry{
		ImageID:  "image-a",
		VolumeID: vol.ID,
		Size:     vol.Size,
		Host:     vol.Host,
	}))

	require.NoError(t, svc.Delete(ctx, vol.ID))

	_, err = svc.Get(ctx, vol.ID)
	require.ErrorIs(t, err, ErrVolumeNotFound)

	entry, err := entries.GetByVolume(ctx, store.HostScope("backend-1"), vol.ID)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestDeleteMissingVolume(t *testing.T) {
	svc, _ := newService(t)

	err := svc.Delete(context.Background(), "nope")
	require.ErrorIs(t, err, ErrVolumeNotFound)
}

func TestListFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateVolumeInput{Size: 1, Host: "backend-1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateVolumeInput{Size: 2, ClusterName: "cluster-east"})
	require.NoError(t, err)

	all, err := svc.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	hostOnly, err := svc.List(ctx, ListOptions{Host: "backend-1"})
	require.NoError(t, err)
	require.Len(t, hostOnly, 1)

	clusterOnly, err := svc.List(ctx, ListOptions{Cluster: "cluster-east"})
	require.NoError(t, err)
	require.Len(t, clusterOnly, 1)
}

func TestScopeResolution(t *testing.T) {
	require.Equal(t, store.ClusterScope("c1"), Scope(&models.Volume{Host: "h1", ClusterName: "c1"}))
	require.Equal(t, store.HostScope("h1"), Scope(&models.Volume{Host: "h1"}))
	require.True(t, Scope(nil).IsZero())
}
