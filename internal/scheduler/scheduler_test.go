// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sapcc/ldapsync/internal/model"
)

type fakeRepo struct {
	cfgs []model.SyncConfig
}

func (f *fakeRepo) ListEnabledSyncConfigs(ctx context.Context) ([]model.SyncConfig, error) {
	return f.cfgs, nil
}

func TestJobDefinitionForKnownFrequencies(t *testing.T) {
	for _, freq := range []model.SyncFrequency{model.FrequencyHourly, model.FrequencyDaily, model.FrequencyWeekly} {
		def, err := jobDefinitionFor(freq)
		require.NoError(t, err)
		require.NotNil(t, def)
	}
}

func TestJobDefinitionForManualIsRejected(t *testing.T) {
	_, err := jobDefinitionFor(model.FrequencyManual)
	require.Error(t, err)
}

// TestRunNowDroppedWhileActive is scenario S6: an on-demand RunNow call
// while another run for the same SyncConfig is in flight must be dropped,
// not queued or run concurrently.
func TestRunNowDroppedWhileActive(t *testing.T) {
	cfg := model.SyncConfig{ID: "cfg-1", Name: "wecom-prod", Frequency: model.FrequencyManual, Enabled: true}

	started := make(chan struct{})
	release := make(chan struct{})
	var runCount int32

	engine := func(ctx context.Context, c model.SyncConfig) error {
		atomic.AddInt32(&runCount, 1)
		close(started)
		<-release
		return nil
	}

	s, err := New(&fakeRepo{}, engine)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.RunNow(context.Background(), cfg)
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first RunNow never started")
	}

	// Second call while the first is still blocked in engine() must be dropped.
	err = s.RunNow(context.Background(), cfg)
	require.Error(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&runCount))

	close(release)
	require.NoError(t, <-errCh)

	// Once the first run has released, a third call must succeed.
	require.NoError(t, s.RunNow(context.Background(), cfg))
	require.Equal(t, int32(2), atomic.LoadInt32(&runCount))
}

// TestRefreshRebuildsJobSet verifies Refresh clears the previously registered
// jobs and re-registers from whatever ListEnabledSyncConfigs returns now,
// covering spec section 4.F's configuration-change reload requirement.
func TestRefreshRebuildsJobSet(t *testing.T) {
	repo := &fakeRepo{cfgs: []model.SyncConfig{
		{ID: "cfg-1", Frequency: model.FrequencyHourly, Enabled: true},
	}}
	s, err := New(repo, func(ctx context.Context, c model.SyncConfig) error { return nil })
	require.NoError(t, err)

	require.NoError(t, s.buildJobs(context.Background()))
	require.Len(t, s.runner.Jobs(), 1)

	repo.cfgs = []model.SyncConfig{
		{ID: "cfg-1", Frequency: model.FrequencyHourly, Enabled: true},
		{ID: "cfg-2", Frequency: model.FrequencyDaily, Enabled: true},
	}
	require.NoError(t, s.Refresh(context.Background()))
	require.Len(t, s.runner.Jobs(), 2)

	repo.cfgs = nil
	require.NoError(t, s.Refresh(context.Background()))
	require.Empty(t, s.runner.Jobs())
}

// TestRunNowIndependentAcrossConfigs verifies the activeRuns gate is keyed
// per SyncConfig, not global: two distinct configs may run concurrently.
func TestRunNowIndependentAcrossConfigs(t *testing.T) {
	release := make(chan struct{})
	var runCount int32

	engine := func(ctx context.Context, c model.SyncConfig) error {
		atomic.AddInt32(&runCount, 1)
		<-release
		return nil
	}

	s, err := New(&fakeRepo{}, engine)
	require.NoError(t, err)

	cfgA := model.SyncConfig{ID: "cfg-a", Frequency: model.FrequencyManual}
	cfgB := model.SyncConfig{ID: "cfg-b", Frequency: model.FrequencyManual}

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() { doneA <- s.RunNow(context.Background(), cfgA) }()
	go func() { doneB <- s.RunNow(context.Background(), cfgB) }()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(2), atomic.LoadInt32(&runCount))

	close(release)
	require.NoError(t, <-doneA)
	require.NoError(t, <-doneB)
}
