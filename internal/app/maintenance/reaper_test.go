package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openvolume/volcached/internal/database/testutil"
	"github.com/openvolume/volcached/internal/imagecache"
	"github.com/openvolume/volcached/internal/models"
	"github.com/openvolume/volcached/internal/notify"
	"github.com/openvolume/volcached/internal/store"
	"github.com/openvolume/volcached/internal/volumes"
)

type fixture struct {
	reaper   *Reaper
	entries  *store.EntryStore
	volumes  *volumes.Service
	recorder *notify.Recorder
}

func newFixture(t *testing.T, cfg imagecache.Config, opts ...Option) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	entries, err := store.NewEntryStore(db)
	require.NoError(t, err)

	volSvc, err := volumes.NewService(db, entries)
	require.NoError(t, err)

	recorder, err := notify.NewRecorder(db)
	require.NoError(t, err)

	cache, err := imagecache.New(entries, volSvc, recorder, cfg)
	require.NoError(t, err)

	reaper, err := NewReaper(cache, entries, append([]Option{WithRecorder(recorder)}, opts...)...)
	require.NoError(t, err)

	return &fixture{reaper: reaper, entries: entries, volumes: volSvc, recorder: recorder}
}

func (f *fixture) seed(t *testing.T, scope store.Scope, imageID string, size int64, lastUsed time.Time) {
	t.Helper()
	ctx := context.Background()

	vol, err := f.volumes.Create(ctx, volumes.CreateVolumeInput{
		Size:        size,
		Host:        scope.Host,
		ClusterName: scope.Cluster,
	})
	require.NoError(t, err)

	require.NoError(t, f.entries.Create(ctx, &models.ImageVolumeEntry{
		ImageID:     imageID,
		VolumeID:    vol.ID,
		Size:        size,
		Host:        scope.Host,
		ClusterName: scope.Cluster,
		LastUsed:    lastUsed,
	}))
}

func TestRunOnceReconcilesEveryScope(t *testing.T) {
	f := newFixture(t, imagecache.Config{MaxCount: 1})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	hostScope := store.HostScope("backend-1")
	clusterScope := store.ClusterScope("cluster-east")

	f.seed(t, hostScope, "image-a", 1, base)
	f.seed(t, hostScope, "image-b", 1, base.Add(-time.Hour))
	f.seed(t, clusterScope, "image-c", 1, base)
	f.seed(t, clusterScope, "image-d", 1, base.Add(-time.Hour))

	require.NoError(t, f.reaper.RunOnce(ctx))

	hostEntries, err := f.entries.GetAll(ctx, hostScope)
	require.NoError(t, err)
	require.Len(t, hostEntries, 1)
	require.Equal(t, "image-a", hostEntries[0].ImageID)

	clusterEntries, err := f.entries.GetAll(ctx, clusterScope)
	require.NoError(t, err)
	require.Len(t, clusterEntries, 1)
	require.Equal(t, "image-c", clusterEntries[0].ImageID)
}

func TestRunOnceWithinLimitsIsNoop(t *testing.T) {
	f := newFixture(t, imagecache.Config{MaxSizeGB: 100, MaxCount: 10})
	ctx := context.Background()

	scope := store.HostScope("backend-1")
	f.seed(t, scope, "image-a", 5, time.Now().UTC())

	require.NoError(t, f.reaper.RunOnce(ctx))

	entries, err := f.entries.GetAll(ctx, scope)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunOncePrunesEventHistory(t *testing.T) {
	f := newFixture(t, imagecache.Config{}, WithEventHistory(2))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.recorder.Notify(ctx, notify.Event{Name: imagecache.EventMiss, Scope: "host:backend-1"})
	}

	require.NoError(t, f.reaper.RunOnce(ctx))

	events, err := f.recorder.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestStartAndStop(t *testing.T) {
	f := newFixture(t, imagecache.Config{}, WithReconcileSchedule("@every 1h"))

	require.NoError(t, f.reaper.Start())

	stopCtx := f.reaper.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}
