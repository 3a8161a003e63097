package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// SessionUpdate carries the columns a conditional update may touch.
// Nil fields are left alone.
type SessionUpdate struct {
	State             *types.SessionState
	CompletedAt       *time.Time
	FinalETag         *string
	PhotoKey          *string
	AudioKey          *string
	Language          *string
	IdempotencyKey    *string
	DispatchMessageID *string
}

// SessionStore is the durable, externally-consistent session record
// store. RecordPart must be an atomic merge and ConditionalUpdate a
// guarded write; both requirements exist so concurrent callers for the
// same tracking id cannot lose updates or double-apply transitions.
type SessionStore interface {
	Create(ctx context.Context, session *types.UploadSession) error
	Get(ctx context.Context, trackingID string) (*types.UploadSession, error)
	RecordPart(ctx context.Context, trackingID string, partNumber int, etag string) error
	ConditionalUpdate(ctx context.Context, trackingID string, expected []types.SessionState, upd SessionUpdate) (*types.UploadSession, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*types.UploadSession, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionStore {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(ctx context.Context, session *types.UploadSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepo) Get(ctx context.Context, trackingID string) (*types.UploadSession, error) {
	var session types.UploadSession
	err := r.db.WithContext(ctx).
		Preload("Parts").
		Where("tracking_id = ?", trackingID).
		First(&session).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// RecordPart upserts one (trackingID, partNumber) row. Re-recording the
// same part with a fresh etag overwrites the old one, which is what a
// client retrying the part upload needs; same etag twice is a no-op at
// the row level.
func (r *sessionRepo) RecordPart(ctx context.Context, trackingID string, partNumber int, etag string) error {
	now := time.Now().UTC()
	part := types.UploadPart{
		ID:         uuid.New(),
		TrackingID: trackingID,
		PartNumber: partNumber,
		ETag:       etag,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tracking_id"}, {Name: "part_number"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"etag": etag, "updated_at": now}),
		}).
		Create(&part).Error
}

func (r *sessionRepo) ConditionalUpdate(ctx context.Context, trackingID string, expected []types.SessionState, upd SessionUpdate) (*types.UploadSession, error) {
	assignments := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if upd.State != nil {
		assignments["state"] = *upd.State
	}
	if upd.CompletedAt != nil {
		assignments["completed_at"] = *upd.CompletedAt
	}
	if upd.FinalETag != nil {
		assignments["final_etag"] = *upd.FinalETag
	}
	if upd.PhotoKey != nil {
		assignments["photo_key"] = *upd.PhotoKey
	}
	if upd.AudioKey != nil {
		assignments["audio_key"] = *upd.AudioKey
	}
	if upd.Language != nil {
		assignments["language"] = *upd.Language
	}
	if upd.IdempotencyKey != nil {
		assignments["idempotency_key"] = *upd.IdempotencyKey
	}
	if upd.DispatchMessageID != nil {
		assignments["dispatch_message_id"] = *upd.DispatchMessageID
	}

	q := r.db.WithContext(ctx).
		Model(&types.UploadSession{}).
		Where("tracking_id = ?", trackingID)
	if len(expected) > 0 {
		q = q.Where("state IN ?", expected)
	}

	res := q.Updates(assignments)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Zero rows is either a missing record or a state mismatch;
		// one more read tells them apart.
		if _, err := r.Get(ctx, trackingID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return r.Get(ctx, trackingID)
}

func (r *sessionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*types.UploadSession, error) {
	var sessions []*types.UploadSession
	q := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Where("state IN ?", []types.SessionState{types.SessionStateInitiated, types.SessionStatePartsPending}).
		Order("expires_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
