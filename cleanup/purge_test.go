package cleanup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kes/database"
	"kes/loader"
	"kes/model"
	"kes/storage"
)

func TestPurge(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "kes.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, loader.InitDatabase(ctx, db))

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	oldKey, err := store.Put(ctx, []byte("old"))
	require.NoError(t, err)
	newKey, err := store.Put(ctx, []byte("new"))
	require.NoError(t, err)

	oldID, err := database.InsertAttachment(ctx, db, &model.Attachment{Name: "old.zip", StorageKey: oldKey, ResModel: model.AttachmentLabelArchive})
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE attachments SET created_at = '2020-01-01 00:00:00' WHERE id = ?`, oldID)
	require.NoError(t, err)
	newID, err := database.InsertAttachment(ctx, db, &model.Attachment{Name: "new.zip", StorageKey: newKey, ResModel: model.AttachmentLabelArchive})
	require.NoError(t, err)
	reportID, err := database.InsertAttachment(ctx, db, &model.Attachment{Name: "r.pdf", StorageKey: oldKey, ResModel: "reports"})
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE attachments SET created_at = '2020-01-01 00:00:00' WHERE id = ?`, reportID)
	require.NoError(t, err)

	n, err := NewPurger(db, store, 24*time.Hour).Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = database.GetAttachment(ctx, db, oldID)
	assert.Error(t, err)
	_, err = store.Get(ctx, oldKey)
	assert.Error(t, err)

	_, err = database.GetAttachment(ctx, db, newID)
	assert.NoError(t, err)
	_, err = database.GetAttachment(ctx, db, reportID)
	assert.NoError(t, err)
}

type failingBlobs struct{}

func (failingBlobs) Delete(context.Context, string) error { return errors.New("read-only") }

func TestPurge_KeepsRowWhenBlobFails(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "kes.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, loader.InitDatabase(ctx, db))

	id, err := database.InsertAttachment(ctx, db, &model.Attachment{Name: "a.zip", StorageKey: "k", ResModel: model.AttachmentLabelArchive})
	require.NoError(t, err)

	p := NewPurger(db, failingBlobs{}, time.Hour)
	p.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err := p.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = database.GetAttachment(ctx, db, id)
	assert.NoError(t, err)
}

func TestSchedule_InvalidSpec(t *testing.T) {
	_, err := Schedule("every tuesday", nil)
	assert.Error(t, err)

	c, err := Schedule("@hourly", NewPurger(nil, failingBlobs{}, time.Hour))
	require.NoError(t, err)
	c.Stop()
}
