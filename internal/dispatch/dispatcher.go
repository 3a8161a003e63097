package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/craftbridge/catalog-backend/internal/config"
	"github.com/craftbridge/catalog-backend/internal/pkg/errors"
	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/transport"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// ProcessingMessage is the completion event handed to the downstream
// pipeline. Field names are part of the consumer contract.
type ProcessingMessage struct {
	TrackingID string            `json:"trackingId"`
	TenantID   string            `json:"tenantId"`
	ArtisanID  string            `json:"artisanId"`
	PhotoKey   string            `json:"photoKey"`
	AudioKey   string            `json:"audioKey"`
	Language   string            `json:"language"`
	Priority   types.Priority    `json:"priority"`
	Timestamp  string            `json:"timestamp"`
	Metadata   map[string]string `json:"metadata"`
}

type PublishInput struct {
	TrackingID string
	TenantID   string
	ArtisanID  string
	PhotoKey   string
	AudioKey   string
	Language   string
	Priority   types.Priority
	Metadata   map[string]string
}

type DispatchResult struct {
	MessageID      string
	IdempotencyKey string
	// Duplicate means the transport collapsed this publish onto an
	// earlier one inside the dedup window.
	Duplicate bool
}

// Dispatcher publishes at most one logical completion event per
// tracking id. The guarantee comes from the derived idempotency key,
// not from any per-attempt state: retries recompute the same key.
type Dispatcher interface {
	Publish(ctx context.Context, in PublishInput) (DispatchResult, error)
	PublishStatusUpdate(ctx context.Context, trackingID, stage, status, message, catalogID string, errorDetails map[string]string) (DispatchResult, error)
}

type dispatcher struct {
	log *logger.Logger
	cfg *config.Config
	tp  transport.Transport
}

func New(log *logger.Logger, cfg *config.Config, tp transport.Transport) Dispatcher {
	return &dispatcher{
		log: log.With("service", "Dispatcher"),
		cfg: cfg,
		tp:  tp,
	}
}

// IdempotencyKey derives the deduplication token for one logical
// completion: sha256 over the immutable identity triple, truncated to
// 32 hex characters. Deterministic by construction, so every retry of
// the same completion carries the same key.
func IdempotencyKey(trackingID, tenantID, artisanID string) string {
	sum := sha256.Sum256([]byte(trackingID + "|" + tenantID + "|" + artisanID))
	return hex.EncodeToString(sum[:])[:32]
}

func (d *dispatcher) Publish(ctx context.Context, in PublishInput) (DispatchResult, error) {
	if in.Priority == "" {
		in.Priority = types.PriorityNormal
	}
	if err := d.validate(in); err != nil {
		return DispatchResult{}, err
	}

	key := IdempotencyKey(in.TrackingID, in.TenantID, in.ArtisanID)

	msg := ProcessingMessage{
		TrackingID: in.TrackingID,
		TenantID:   in.TenantID,
		ArtisanID:  in.ArtisanID,
		PhotoKey:   in.PhotoKey,
		AudioKey:   in.AudioKey,
		Language:   in.Language,
		Priority:   in.Priority,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Metadata:   in.Metadata,
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]string{}
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return DispatchResult{}, errors.Wrap(errors.KindInternalInconsistency, "marshal processing message", err)
	}

	res, err := d.tp.Send(ctx, transport.Envelope{
		Body: body,
		Attributes: map[string]string{
			"TrackingId": in.TrackingID,
			"TenantId":   in.TenantID,
			"Priority":   string(in.Priority),
			"Language":   in.Language,
		},
		DedupKey: key,
		GroupKey: in.TenantID,
	})
	if err != nil {
		return DispatchResult{}, errors.Wrap(errors.KindTransientDependency, "publish processing message", err)
	}

	d.log.Info("Processing message published",
		"tracking_id", in.TrackingID,
		"message_id", res.MessageID,
		"idempotency_key", key,
		"duplicate", res.Duplicate,
	)

	return DispatchResult{
		MessageID:      res.MessageID,
		IdempotencyKey: key,
		Duplicate:      res.Duplicate,
	}, nil
}

func (d *dispatcher) validate(in PublishInput) error {
	if in.TrackingID == "" {
		return errors.New(errors.KindValidation, "trackingId is required")
	}
	if in.TenantID == "" {
		return errors.New(errors.KindValidation, "tenantId is required")
	}
	if in.ArtisanID == "" {
		return errors.New(errors.KindValidation, "artisanId is required")
	}
	if in.Language == "" {
		return errors.New(errors.KindValidation, "language is required")
	}
	if !d.cfg.LanguageSupported(in.Language) {
		return errors.Newf(errors.KindValidation, "unsupported language %q", in.Language)
	}
	if in.PhotoKey == "" && in.AudioKey == "" {
		return errors.New(errors.KindValidation, "at least one of photoKey or audioKey must be provided")
	}
	if !types.ValidPriority(in.Priority) {
		return errors.Newf(errors.KindValidation, "invalid priority %q", in.Priority)
	}
	return nil
}

// statusUpdateMessage mirrors the notification shape consumed by the
// status-update fan-out.
type statusUpdateMessage struct {
	TrackingID   string            `json:"trackingId"`
	Stage        string            `json:"stage"`
	Status       string            `json:"status"`
	Message      string            `json:"message"`
	CatalogID    string            `json:"catalogId,omitempty"`
	ErrorDetails map[string]string `json:"errorDetails,omitempty"`
	Timestamp    string            `json:"timestamp"`
}

func (d *dispatcher) PublishStatusUpdate(ctx context.Context, trackingID, stage, status, message, catalogID string, errorDetails map[string]string) (DispatchResult, error) {
	if trackingID == "" {
		return DispatchResult{}, errors.New(errors.KindValidation, "trackingId is required")
	}
	if stage == "" {
		return DispatchResult{}, errors.New(errors.KindValidation, "stage is required")
	}

	body, err := json.Marshal(statusUpdateMessage{
		TrackingID:   trackingID,
		Stage:        stage,
		Status:       status,
		Message:      message,
		CatalogID:    catalogID,
		ErrorDetails: errorDetails,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return DispatchResult{}, errors.Wrap(errors.KindInternalInconsistency, "marshal status update", err)
	}

	res, err := d.tp.Send(ctx, transport.Envelope{
		Body: body,
		Attributes: map[string]string{
			"MessageType": "StatusUpdate",
			"TrackingId":  trackingID,
			"Stage":       stage,
		},
	})
	if err != nil {
		return DispatchResult{}, errors.Wrap(errors.KindTransientDependency, fmt.Sprintf("publish status update for %s", trackingID), err)
	}

	d.log.Debug("Status update published",
		"tracking_id", trackingID,
		"stage", stage,
		"message_id", res.MessageID,
	)
	return DispatchResult{MessageID: res.MessageID}, nil
}
