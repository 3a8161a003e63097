package store

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// CatalogStore covers the slice of the catalog record this service
// owns: creation at initiation and the media-key/language update at
// completion. The per-stage status columns belong to the downstream
// processing stages.
type CatalogStore interface {
	Create(ctx context.Context, record *types.CatalogRecord) error
	Get(ctx context.Context, trackingID string) (*types.CatalogRecord, error)
	UpdateMediaKeys(ctx context.Context, trackingID, photoKey, audioKey, language string) error
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogStore {
	return &catalogRepo{db: db, log: baseLog.With("repo", "CatalogRepo")}
}

func (r *catalogRepo) Create(ctx context.Context, record *types.CatalogRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *catalogRepo) Get(ctx context.Context, trackingID string) (*types.CatalogRecord, error) {
	var record types.CatalogRecord
	err := r.db.WithContext(ctx).
		Where("tracking_id = ?", trackingID).
		First(&record).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *catalogRepo) UpdateMediaKeys(ctx context.Context, trackingID, photoKey, audioKey, language string) error {
	assignments := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if photoKey != "" {
		assignments["photo_key"] = photoKey
	}
	if audioKey != "" {
		assignments["audio_key"] = audioKey
	}
	if language != "" {
		assignments["language"] = language
	}

	res := r.db.WithContext(ctx).
		Model(&types.CatalogRecord{}).
		Where("tracking_id = ?", trackingID).
		Updates(assignments)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
