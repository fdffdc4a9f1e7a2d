package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/storage"
)

// Download is one row of the material_downloads collection.
type Download struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	MaterialName string    `json:"material_name"`
	Level        string    `json:"level"`
	Subject      string    `json:"subject"`
	DownloadedAt time.Time `json:"downloaded_at"`
	Completed    bool      `json:"completed"`
}

// Tracker records material downloads.
type Tracker struct {
	store    storage.Driver
	identity identity.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// NewTracker returns a Tracker writing to store on behalf of the user
// ids resolves.
func NewTracker(store storage.Driver, ids identity.Provider, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:    store,
		identity: ids,
		logger:   logger,
		now:      time.Now,
	}
}

// Track records a download by the signed-in user. Signed-out callers are
// ignored so an anonymous download still succeeds.
func (t *Tracker) Track(ctx context.Context, name, level, subject string) error {
	sess, err := t.identity.CurrentUser(ctx)
	if errors.Is(err, identity.ErrSignedOut) {
		t.logger.Debug("skipping download tracking for signed out user", "material", name)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = t.store.Insert(ctx, collectionDownloads, storage.Record{
		"user_id":       sess.UserID,
		"material_name": name,
		"level":         level,
		"subject":       subject,
		"downloaded_at": t.now().UTC().Format(storage.TimeFormat),
		"completed":     false,
	})
	if err != nil {
		return fmt.Errorf("tracking download: %w", err)
	}
	return nil
}

// TrackMaterial records a catalog download under m.Key, the name
// FilterMaterials ranks by.
func (t *Tracker) TrackMaterial(ctx context.Context, m Material) error {
	return t.Track(ctx, m.Key(), m.Level, m.Subject)
}

// Complete marks one of the signed-in user's downloads as completed.
func (t *Tracker) Complete(ctx context.Context, downloadID string) error {
	sess, err := t.identity.CurrentUser(ctx)
	if err != nil {
		return err
	}

	q := storage.From(collectionDownloads).Where(storage.ColumnID, downloadID).Where("user_id", sess.UserID)
	n, err := t.store.Update(ctx, q, storage.Record{"completed": true})
	if err != nil {
		return fmt.Errorf("completing download: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{Collection: collectionDownloads}
	}
	return nil
}

// Counts returns the number of downloads per material name.
func (t *Tracker) Counts(ctx context.Context) (map[string]int, error) {
	recs, err := t.store.Select(ctx, storage.From(collectionDownloads))
	if err != nil {
		return nil, fmt.Errorf("counting downloads: %w", err)
	}

	counts := make(map[string]int, len(recs))
	for _, rec := range recs {
		counts[rec.String("material_name")]++
	}
	return counts, nil
}

// Recent returns downloads newest first. A limit of 0 returns all of them.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]Download, error) {
	q := storage.From(collectionDownloads).OrderBy("downloaded_at", true).Take(limit)
	recs, err := t.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("loading downloads: %w", err)
	}
	return storage.DecodeAll[Download](recs)
}
