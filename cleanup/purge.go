package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"kes/database"
	"kes/metrics"
	"kes/model"
)

// BlobDeleter removes stored attachment content.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Purger deletes label archives older than the retention.
type Purger struct {
	db        *sqlx.DB
	blobs     BlobDeleter
	retention time.Duration
	now       func() time.Time
}

func NewPurger(db *sqlx.DB, blobs BlobDeleter, retention time.Duration) *Purger {
	return &Purger{db: db, blobs: blobs, retention: retention, now: time.Now}
}

// Purge removes expired archives and returns how many were deleted. A blob
// that cannot be removed keeps its row for the next run.
func (p *Purger) Purge(ctx context.Context) (int, error) {
	cutoff := p.now().UTC().Add(-p.retention).Format("2006-01-02 15:04:05")
	expired, err := database.ListAttachmentsCreatedBefore(ctx, p.db, model.AttachmentLabelArchive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired archives: %w", err)
	}

	purged := 0
	for _, a := range expired {
		if err := p.blobs.Delete(ctx, a.StorageKey); err != nil {
			log.Warnf("cleanup: keep archive %d (%s): %v", a.ID, a.Name, err)
			continue
		}
		if err := database.DeleteAttachment(ctx, p.db, a.ID); err != nil {
			return purged, err
		}
		purged++
	}
	if purged > 0 {
		metrics.ArchivesPurged.Add(float64(purged))
		log.Infof("cleanup: %d expired label archive(s) removed", purged)
	}
	return purged, nil
}

// Schedule runs Purge on the cron spec. The caller stops the returned cron.
func Schedule(spec string, p *Purger) (*cron.Cron, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := p.Purge(context.Background()); err != nil {
			log.Errorf("cleanup: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule cleanup: %w", err)
	}
	c.Start()
	return c, nil
}
