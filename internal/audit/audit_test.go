// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sapcc/ldapsync/internal/model"
)

type fakeRepo struct {
	mu      sync.Mutex
	logs    []model.SyncLog
	details []model.SyncLogDetail
	sealed  map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sealed: map[string]bool{}}
}

func (f *fakeRepo) CreateSyncLog(ctx context.Context, log model.SyncLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeRepo) InsertSyncLogDetail(ctx context.Context, detail model.SyncLogDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details = append(f.details, detail)
	return nil
}

func (f *fakeRepo) SealSyncLog(ctx context.Context, logID string, success bool, usersSynced, departmentsSynced int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sealed[logID] = success
	return nil
}

func TestWriterOpenRecordSeal(t *testing.T) {
	repo := newFakeRepo()
	w := NewWriter(repo)

	log, err := w.Open(context.Background(), model.SyncConfig{ID: "cfg-1"})
	require.NoError(t, err)
	require.NotEmpty(t, log.ID)

	err = w.Record(context.Background(), log.ID, model.SyncLogDetail{
		ObjectType: model.ObjectDepartment, Action: model.ActionCreate, ObjectID: "1",
	})
	require.NoError(t, err)

	err = w.Seal(context.Background(), log.ID, true, 1, 1)
	require.NoError(t, err)

	require.Len(t, repo.details, 1)
	require.True(t, repo.sealed[log.ID])
}

func TestBufferedWriterDrainsBeforeSeal(t *testing.T) {
	repo := newFakeRepo()
	inner := NewWriter(repo)
	bw := NewBufferedWriter(inner, 4)

	log, err := bw.Open(context.Background(), model.SyncConfig{ID: "cfg-1"})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		err := bw.Record(context.Background(), log.ID, model.SyncLogDetail{
			ObjectType: model.ObjectUser, Action: model.ActionCreate, ObjectID: "u",
		})
		require.NoError(t, err)
	}

	err = bw.Seal(context.Background(), log.ID, true, 4, 0)
	require.NoError(t, err)

	require.Len(t, repo.details, 4)
	require.True(t, repo.sealed[log.ID])
}
