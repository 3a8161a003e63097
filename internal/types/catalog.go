package types

import "time"

type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
	StageStatusSkipped    StageStatus = "skipped"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	default:
		return false
	}
}

// CatalogRecord is created at upload initiation with every stage
// pending. The downstream processing stages each own exactly one status
// column; this service never writes them after creation, and the status
// projector only reads them.
type CatalogRecord struct {
	TrackingID string `gorm:"column:tracking_id;type:varchar(64);primaryKey" json:"tracking_id"`
	TenantID   string `gorm:"column:tenant_id;type:varchar(128);not null;index" json:"tenant_id"`
	ArtisanID  string `gorm:"column:artisan_id;type:varchar(128);not null;index" json:"artisan_id"`

	PhotoKey string `gorm:"column:photo_key;type:varchar(512)" json:"photo_key,omitempty"`
	AudioKey string `gorm:"column:audio_key;type:varchar(512)" json:"audio_key,omitempty"`
	Language string `gorm:"column:language;type:varchar(8)" json:"language,omitempty"`

	AsrStatus        StageStatus `gorm:"column:asr_status;type:varchar(32);not null;default:'pending'" json:"asr_status"`
	VisionStatus     StageStatus `gorm:"column:vision_status;type:varchar(32);not null;default:'pending'" json:"vision_status"`
	ExtractionStatus StageStatus `gorm:"column:extraction_status;type:varchar(32);not null;default:'pending'" json:"extraction_status"`
	MappingStatus    StageStatus `gorm:"column:mapping_status;type:varchar(32);not null;default:'pending'" json:"mapping_status"`
	SubmissionStatus StageStatus `gorm:"column:submission_status;type:varchar(32);not null;default:'pending'" json:"submission_status"`

	// Set by the submission stage on success.
	OndcCatalogID string `gorm:"column:ondc_catalog_id;type:varchar(128)" json:"ondc_catalog_id,omitempty"`
	// JSON blob written by whichever stage failed.
	ErrorDetails string `gorm:"column:error_details;type:text" json:"error_details,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (CatalogRecord) TableName() string { return "catalog_record" }
