package status

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/craftbridge/catalog-backend/internal/pkg/errors"
	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/store"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// Stage is the single user-facing phase derived from the five
// fine-grained per-process status columns.
type Stage string

const (
	StageUploaded   Stage = "uploaded"
	StageProcessing Stage = "processing"
	StageExtraction Stage = "extraction"
	StageMapping    Stage = "mapping"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

var stageMessages = map[Stage]string{
	StageUploaded:   "Media uploaded successfully, queued for processing",
	StageProcessing: "Processing media with AI models",
	StageExtraction: "Extracting product attributes",
	StageMapping:    "Mapping to ONDC catalog format",
	StageCompleted:  "Catalog entry successfully published to ONDC",
	StageFailed:     "Processing failed",
}

// Snapshot is a point-in-time view; nothing in it is a promise about
// the next read.
type Snapshot struct {
	TrackingID   string    `json:"tracking_id"`
	Stage        Stage     `json:"stage"`
	Message      string    `json:"message"`
	CatalogID    string    `json:"catalog_id,omitempty"`
	ErrorDetails string    `json:"error_details,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Projector reads the catalog record and the session store; it never
// writes either. Safe to call concurrently and repeatedly.
type Projector interface {
	GetStatus(ctx context.Context, trackingID string) (*Snapshot, error)
}

type projector struct {
	log      *logger.Logger
	catalogs store.CatalogStore
}

func New(log *logger.Logger, catalogs store.CatalogStore) Projector {
	return &projector{
		log:      log.With("service", "StatusProjector"),
		catalogs: catalogs,
	}
}

func (p *projector) GetStatus(ctx context.Context, trackingID string) (*Snapshot, error) {
	if trackingID == "" {
		return nil, errors.New(errors.KindValidation, "trackingId is required")
	}

	rec, err := p.catalogs.Get(ctx, trackingID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.Newf(errors.KindNotFound, "tracking id %s not found", trackingID)
		}
		return nil, errors.Wrap(errors.KindTransientDependency, "read catalog record", err)
	}

	stage := DeriveStage(rec)
	snap := &Snapshot{
		TrackingID: trackingID,
		Stage:      stage,
		Message:    StageMessage(stage, rec.ErrorDetails),
		Timestamp:  time.Now().UTC(),
	}
	if rec.OndcCatalogID != "" {
		snap.CatalogID = rec.OndcCatalogID
	}
	if stage == StageFailed && rec.ErrorDetails != "" {
		snap.ErrorDetails = rec.ErrorDetails
	}
	return snap, nil
}

// DeriveStage collapses the five stage columns into one phase,
// most-advanced first. Total over every status combination: anything
// not caught by a rule lands on "uploaded".
func DeriveStage(rec *types.CatalogRecord) Stage {
	switch rec.SubmissionStatus {
	case types.StageStatusCompleted:
		return StageCompleted
	case types.StageStatusFailed:
		return StageFailed
	}
	if active(rec.MappingStatus) {
		return StageMapping
	}
	if active(rec.ExtractionStatus) {
		return StageExtraction
	}
	if active(rec.VisionStatus) || active(rec.AsrStatus) {
		return StageProcessing
	}
	return StageUploaded
}

func active(s types.StageStatus) bool {
	return s == types.StageStatusInProgress || s == types.StageStatusCompleted
}

// StageMessage renders the fixed human-readable text for a stage; for
// failures it appends the message field of the recorded error details
// when one parses out.
func StageMessage(stage Stage, errorDetails string) string {
	msg, ok := stageMessages[stage]
	if !ok {
		msg = "Processing in progress"
	}
	if stage == StageFailed && errorDetails != "" {
		var details struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(errorDetails), &details); err == nil && details.Message != "" {
			msg = msg + ": " + details.Message
		}
	}
	return msg
}
