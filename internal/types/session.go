package types

import (
	"time"

	"github.com/google/uuid"
)

type SessionState string

const (
	SessionStateInitiated    SessionState = "initiated"
	SessionStatePartsPending SessionState = "parts_pending"
	SessionStateCompleted    SessionState = "completed"
	SessionStateAborted      SessionState = "aborted"
	SessionStateExpired      SessionState = "expired"
)

func (s SessionState) Terminal() bool {
	switch s {
	case SessionStateCompleted, SessionStateAborted, SessionStateExpired:
		return true
	default:
		return false
	}
}

// UploadSession tracks one resumable upload from initiation to
// completion, abort, or expiry. Dispatch bookkeeping (message id plus
// the derived idempotency key) is folded into the session row so a
// completed-but-undispatched session can be told apart from a fully
// dispatched one.
type UploadSession struct {
	TrackingID string `gorm:"column:tracking_id;type:varchar(64);primaryKey" json:"tracking_id"`
	TenantID   string `gorm:"column:tenant_id;type:varchar(128);not null;index" json:"tenant_id"`
	ArtisanID  string `gorm:"column:artisan_id;type:varchar(128);not null;index" json:"artisan_id"`

	ObjectKey   string `gorm:"column:object_key;type:varchar(512);not null" json:"object_key"`
	BucketRef   string `gorm:"column:bucket_ref;type:varchar(255);not null" json:"bucket_ref"`
	ContentType string `gorm:"column:content_type;type:varchar(128);not null" json:"content_type"`
	TotalSize   int64  `gorm:"column:total_size;not null" json:"total_size"`
	PartSize    int64  `gorm:"column:part_size;not null" json:"part_size"`
	PartCount   int    `gorm:"column:part_count;not null" json:"part_count"`

	// Empty for single-shot uploads.
	UploadToken string `gorm:"column:upload_token;type:varchar(128)" json:"upload_token,omitempty"`

	State SessionState `gorm:"column:state;type:varchar(32);not null;default:'initiated';index" json:"state"`

	// Set by Complete before dispatch.
	PhotoKey string `gorm:"column:photo_key;type:varchar(512)" json:"photo_key,omitempty"`
	AudioKey string `gorm:"column:audio_key;type:varchar(512)" json:"audio_key,omitempty"`
	Language string `gorm:"column:language;type:varchar(8)" json:"language,omitempty"`

	FinalETag         string `gorm:"column:final_etag;type:varchar(255)" json:"final_etag,omitempty"`
	IdempotencyKey    string `gorm:"column:idempotency_key;type:varchar(64);index" json:"idempotency_key,omitempty"`
	DispatchMessageID string `gorm:"column:dispatch_message_id;type:varchar(255)" json:"dispatch_message_id,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
	ExpiresAt   time.Time  `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Parts []UploadPart `gorm:"foreignKey:TrackingID;references:TrackingID;constraint:OnDelete:CASCADE" json:"parts,omitempty"`
}

func (UploadSession) TableName() string { return "upload_session" }

// UploadPart records one successfully uploaded part. The unique index
// on (tracking_id, part_number) is what makes part recording an atomic
// upsert rather than a read-modify-write of a client-side list.
type UploadPart struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TrackingID string    `gorm:"column:tracking_id;type:varchar(64);not null;uniqueIndex:ux_upload_part,priority:1" json:"tracking_id"`
	PartNumber int       `gorm:"column:part_number;not null;uniqueIndex:ux_upload_part,priority:2" json:"part_number"`
	ETag       string    `gorm:"column:etag;type:varchar(255);not null" json:"etag"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (UploadPart) TableName() string { return "upload_part" }

// CompletedPart is the (partNumber, eTag) pair handed to the object
// store at finalize time, sorted ascending by part number.
type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}
