package upload

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftbridge/catalog-backend/internal/config"
	"github.com/craftbridge/catalog-backend/internal/dispatch"
	"github.com/craftbridge/catalog-backend/internal/pkg/errors"
	"github.com/craftbridge/catalog-backend/internal/platform/locker"
	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/platform/objectstore"
	"github.com/craftbridge/catalog-backend/internal/status"
	"github.com/craftbridge/catalog-backend/internal/store"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// completionLockTTL backstops a holder that dies mid-finalize; it must
// outlive the slowest finalize+dispatch we are willing to wait for.
const completionLockTTL = 2 * time.Minute

type InitiateInput struct {
	TenantID    string
	ArtisanID   string
	ContentType string
	TotalSize   int64
}

type PartTarget struct {
	PartNumber int    `json:"part_number"`
	URL        string `json:"url"`
}

// SessionHandle is what the client needs to start uploading: either a
// single direct-PUT URL or one URL per part.
type SessionHandle struct {
	TrackingID string       `json:"tracking_id"`
	ObjectKey  string       `json:"object_key"`
	Multipart  bool         `json:"multipart"`
	UploadURL  string       `json:"upload_url,omitempty"`
	PartURLs   []PartTarget `json:"part_urls,omitempty"`
	PartCount  int          `json:"part_count"`
	PartSize   int64        `json:"part_size"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

type ResumeState struct {
	TrackingID     string `json:"tracking_id"`
	CompletedParts int    `json:"completed_parts"`
	TotalParts     int    `json:"total_parts"`
	IsComplete     bool   `json:"is_complete"`
}

type ResumeInfo struct {
	TrackingID           string             `json:"tracking_id"`
	State                types.SessionState `json:"state"`
	CompletedPartNumbers []int              `json:"completed_parts"`
	PendingPartNumbers   []int              `json:"pending_parts"`
	PartCount            int                `json:"num_parts"`
	TotalSize            int64              `json:"file_size"`
	PartSize             int64              `json:"part_size"`
}

type CompleteInput struct {
	TrackingID string
	PhotoKey   string
	AudioKey   string
	Language   string
	Priority   types.Priority
	Metadata   map[string]string
}

type FinalizedObject struct {
	TrackingID     string `json:"tracking_id"`
	ObjectKey      string `json:"object_key"`
	Bucket         string `json:"bucket"`
	ETag           string `json:"etag,omitempty"`
	// CDN-fronted URL for the final object, when a CDN domain is
	// configured.
	CDNURL         string `json:"cdn_url,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	// AlreadyCompleted marks the prior result of an earlier Complete
	// call being replayed.
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

// Manager owns the per-object upload lifecycle. It is stateless over a
// durable session store: any number of instances may serve the same
// tracking id, with conditional writes and the completion lock keeping
// them from losing parts or double-finalizing.
type Manager interface {
	Initiate(ctx context.Context, in InitiateInput) (*SessionHandle, error)
	RecordPartCompletion(ctx context.Context, trackingID string, partNumber int, etag string) (*ResumeState, error)
	GetResumeInfo(ctx context.Context, trackingID string) (*ResumeInfo, error)
	Complete(ctx context.Context, in CompleteInput) (*FinalizedObject, error)
	Abort(ctx context.Context, trackingID string) error
	Expire(ctx context.Context, trackingID string) error
}

type manager struct {
	log        *logger.Logger
	cfg        *config.Config
	sessions   store.SessionStore
	catalogs   store.CatalogStore
	objects    objectstore.ObjectStore
	dispatcher dispatch.Dispatcher
	locks      locker.Locker
	tracer     trace.Tracer
}

func NewManager(
	baseLog *logger.Logger,
	cfg *config.Config,
	sessions store.SessionStore,
	catalogs store.CatalogStore,
	objects objectstore.ObjectStore,
	dispatcher dispatch.Dispatcher,
	locks locker.Locker,
) Manager {
	return &manager{
		log:        baseLog.With("service", "UploadManager"),
		cfg:        cfg,
		sessions:   sessions,
		catalogs:   catalogs,
		objects:    objects,
		dispatcher: dispatcher,
		locks:      locks,
		tracer:     otel.Tracer("catalog-backend/upload"),
	}
}

var extensionByContentType = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"audio/opus": "opus",
	"audio/mpeg": "mp3",
	"audio/wav":  "wav",
}

func extensionFor(contentType string) string {
	if ext, ok := extensionByContentType[contentType]; ok {
		return ext
	}
	return "bin"
}

func newTrackingID() string {
	return "trk_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

func (m *manager) Initiate(ctx context.Context, in InitiateInput) (*SessionHandle, error) {
	ctx, span := m.tracer.Start(ctx, "upload.Initiate")
	defer span.End()

	if in.TenantID == "" || in.ArtisanID == "" {
		return nil, errors.New(errors.KindValidation, "tenantId and artisanId are required")
	}
	if in.ContentType == "" {
		return nil, errors.New(errors.KindValidation, "contentType is required")
	}
	if !m.cfg.ContentTypeAllowed(in.ContentType) {
		return nil, errors.Newf(errors.KindValidation,
			"unsupported media type %q (allowed: %s)",
			in.ContentType, strings.Join(m.cfg.AllowedContentTypes, ", "))
	}
	if in.TotalSize <= 0 {
		return nil, errors.New(errors.KindValidation, "totalSize must be positive")
	}

	trackingID := newTrackingID()
	span.SetAttributes(attribute.String("tracking_id", trackingID))

	objectKey := fmt.Sprintf("%s/%s/%s.%s", in.TenantID, in.ArtisanID, trackingID, extensionFor(in.ContentType))

	partSize := m.cfg.PartSize
	multipart := in.TotalSize > m.cfg.SinglePartThreshold
	partCount := 1
	if multipart {
		partCount = int((in.TotalSize + partSize - 1) / partSize)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(m.cfg.URLTTL)

	handle := &SessionHandle{
		TrackingID: trackingID,
		ObjectKey:  objectKey,
		Multipart:  multipart,
		PartCount:  partCount,
		PartSize:   partSize,
		ExpiresAt:  expiresAt,
	}

	var uploadToken string
	if multipart {
		token, err := m.objects.CreateMultipartUpload(ctx, objectKey, in.ContentType, map[string]string{
			"tracking_id": trackingID,
			"tenant_id":   in.TenantID,
			"artisan_id":  in.ArtisanID,
		})
		if err != nil {
			return nil, errors.Wrap(errors.KindTransientDependency, "create multipart upload", err)
		}
		uploadToken = token

		handle.PartURLs = make([]PartTarget, 0, partCount)
		for n := 1; n <= partCount; n++ {
			u, err := m.objects.IssuePresignedUploadPart(ctx, objectKey, uploadToken, n, m.cfg.URLTTL)
			if err != nil {
				return nil, errors.Wrap(errors.KindTransientDependency, "issue part upload url", err)
			}
			handle.PartURLs = append(handle.PartURLs, PartTarget{PartNumber: n, URL: u})
		}
	} else {
		u, err := m.objects.IssuePresignedPut(ctx, objectKey, in.ContentType, m.cfg.URLTTL)
		if err != nil {
			return nil, errors.Wrap(errors.KindTransientDependency, "issue upload url", err)
		}
		handle.UploadURL = u
	}

	session := &types.UploadSession{
		TrackingID:  trackingID,
		TenantID:    in.TenantID,
		ArtisanID:   in.ArtisanID,
		ObjectKey:   objectKey,
		BucketRef:   m.objects.BucketName(),
		ContentType: in.ContentType,
		TotalSize:   in.TotalSize,
		PartSize:    partSize,
		PartCount:   partCount,
		UploadToken: uploadToken,
		State:       types.SessionStateInitiated,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, errors.Wrap(errors.KindTransientDependency, "persist upload session", err)
	}

	record := &types.CatalogRecord{
		TrackingID:       trackingID,
		TenantID:         in.TenantID,
		ArtisanID:        in.ArtisanID,
		Language:         m.defaultLanguage(),
		AsrStatus:        types.StageStatusPending,
		VisionStatus:     types.StageStatusPending,
		ExtractionStatus: types.StageStatusPending,
		MappingStatus:    types.StageStatusPending,
		SubmissionStatus: types.StageStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if strings.HasPrefix(in.ContentType, "image/") {
		record.PhotoKey = objectKey
	}
	if strings.HasPrefix(in.ContentType, "audio/") {
		record.AudioKey = objectKey
	}
	if err := m.catalogs.Create(ctx, record); err != nil {
		return nil, errors.Wrap(errors.KindTransientDependency, "persist catalog record", err)
	}

	m.log.Info("Upload initiated",
		"tracking_id", trackingID,
		"tenant_id", in.TenantID,
		"artisan_id", in.ArtisanID,
		"object_key", objectKey,
		"multipart", multipart,
		"num_parts", partCount,
	)
	return handle, nil
}

func (m *manager) RecordPartCompletion(ctx context.Context, trackingID string, partNumber int, etag string) (*ResumeState, error) {
	ctx, span := m.tracer.Start(ctx, "upload.RecordPartCompletion")
	defer span.End()
	span.SetAttributes(attribute.String("tracking_id", trackingID), attribute.Int("part_number", partNumber))

	if etag == "" {
		return nil, errors.New(errors.KindValidation, "eTag is required")
	}

	session, err := m.getSession(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if session.State.Terminal() {
		return nil, errors.Newf(errors.KindInvalidState,
			"cannot record part on session in state %q", session.State)
	}
	if partNumber < 1 || partNumber > session.PartCount {
		return nil, errors.Newf(errors.KindValidation,
			"partNumber %d out of range [1..%d]", partNumber, session.PartCount)
	}

	if err := m.sessions.RecordPart(ctx, trackingID, partNumber, etag); err != nil {
		return nil, errors.Wrap(errors.KindTransientDependency, "record part", err)
	}

	if session.State == types.SessionStateInitiated {
		pending := types.SessionStatePartsPending
		_, err := m.sessions.ConditionalUpdate(ctx, trackingID,
			[]types.SessionState{types.SessionStateInitiated},
			store.SessionUpdate{State: &pending})
		if err != nil && !stderrors.Is(err, store.ErrConflict) {
			return nil, errors.Wrap(errors.KindTransientDependency, "transition to parts_pending", err)
		}
	}

	session, err = m.getSession(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	completed := len(session.Parts)

	m.log.Debug("Part completion recorded",
		"tracking_id", trackingID,
		"part_number", partNumber,
		"completed_parts", completed,
		"total_parts", session.PartCount,
	)
	return &ResumeState{
		TrackingID:     trackingID,
		CompletedParts: completed,
		TotalParts:     session.PartCount,
		IsComplete:     completed == session.PartCount,
	}, nil
}

func (m *manager) GetResumeInfo(ctx context.Context, trackingID string) (*ResumeInfo, error) {
	ctx, span := m.tracer.Start(ctx, "upload.GetResumeInfo")
	defer span.End()
	span.SetAttributes(attribute.String("tracking_id", trackingID))

	session, err := m.getSession(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	done := make(map[int]bool, len(session.Parts))
	completed := make([]int, 0, len(session.Parts))
	for _, p := range session.Parts {
		if !done[p.PartNumber] {
			done[p.PartNumber] = true
			completed = append(completed, p.PartNumber)
		}
	}
	sort.Ints(completed)

	pending := make([]int, 0, session.PartCount-len(completed))
	for n := 1; n <= session.PartCount; n++ {
		if !done[n] {
			pending = append(pending, n)
		}
	}

	return &ResumeInfo{
		TrackingID:           trackingID,
		State:                session.State,
		CompletedPartNumbers: completed,
		PendingPartNumbers:   pending,
		PartCount:            session.PartCount,
		TotalSize:            session.TotalSize,
		PartSize:             session.PartSize,
	}, nil
}

func (m *manager) Complete(ctx context.Context, in CompleteInput) (*FinalizedObject, error) {
	ctx, span := m.tracer.Start(ctx, "upload.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("tracking_id", in.TrackingID))

	if in.Language != "" && !m.cfg.LanguageSupported(in.Language) {
		return nil, errors.Newf(errors.KindValidation, "unsupported language %q", in.Language)
	}
	if in.Priority != "" && !types.ValidPriority(in.Priority) {
		return nil, errors.Newf(errors.KindValidation, "invalid priority %q", in.Priority)
	}

	session, err := m.getSession(ctx, in.TrackingID)
	if err != nil {
		return nil, err
	}
	if err := m.checkCompletable(session); err != nil {
		return nil, err
	}

	// One completer at a time per tracking id, for the whole
	// finalize+dispatch window.
	release, acquired, err := m.locks.TryAcquire(ctx, in.TrackingID, completionLockTTL)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransientDependency, "acquire completion lock", err)
	}
	if !acquired {
		return nil, locker.ErrLockUnavailable(in.TrackingID)
	}
	defer release()

	// Re-read under the lock; the pre-lock checks were only a cheap
	// fast path.
	session, err = m.getSession(ctx, in.TrackingID)
	if err != nil {
		return nil, err
	}
	if err := m.checkCompletable(session); err != nil {
		return nil, err
	}

	if session.State == types.SessionStateCompleted {
		return m.replayOrRetryDispatch(ctx, session, in)
	}

	var finalETag string
	if session.UploadToken != "" {
		orderedParts, err := collectOrderedParts(session)
		if err != nil {
			return nil, err
		}
		finalETag, err = m.objects.FinalizeMultipartUpload(ctx, session.ObjectKey, session.UploadToken, session.ContentType, orderedParts)
		if err != nil {
			return nil, errors.Wrap(errors.KindTransientDependency, "finalize multipart upload", err)
		}
	}

	photoKey, audioKey, language := m.resolveMedia(session, in)
	completedState := types.SessionStateCompleted
	now := time.Now().UTC()
	idemKey := dispatch.IdempotencyKey(session.TrackingID, session.TenantID, session.ArtisanID)

	session, err = m.sessions.ConditionalUpdate(ctx, in.TrackingID,
		[]types.SessionState{types.SessionStateInitiated, types.SessionStatePartsPending},
		store.SessionUpdate{
			State:          &completedState,
			CompletedAt:    &now,
			FinalETag:      &finalETag,
			PhotoKey:       &photoKey,
			AudioKey:       &audioKey,
			Language:       &language,
			IdempotencyKey: &idemKey,
		})
	if err != nil {
		if stderrors.Is(err, store.ErrConflict) {
			// Abort and Expire take this same lock, so a conflict here
			// is a store anomaly rather than a caller race.
			return nil, errors.Newf(errors.KindInternalInconsistency,
				"session %s changed state during locked completion", in.TrackingID)
		}
		return nil, errors.Wrap(errors.KindTransientDependency, "mark session completed", err)
	}

	m.log.Info("Upload finalized",
		"tracking_id", in.TrackingID,
		"object_key", session.ObjectKey,
		"etag", finalETag,
		"multipart", session.UploadToken != "",
	)

	return m.dispatchCompleted(ctx, session, in.Priority, in.Metadata)
}

// checkCompletable rejects sessions that can never complete and
// sessions that are short on parts. A completed session passes: the
// caller replays or retries dispatch for it.
func (m *manager) checkCompletable(session *types.UploadSession) error {
	switch session.State {
	case types.SessionStateAborted, types.SessionStateExpired:
		return errors.Newf(errors.KindInvalidState,
			"cannot complete session in state %q", session.State)
	case types.SessionStateCompleted:
		return nil
	}
	// Single-shot sessions carry no part ledger; the bytes went
	// straight to the final key.
	if session.UploadToken == "" {
		return nil
	}
	if completed := countDistinctParts(session); completed < session.PartCount {
		return errors.Newf(errors.KindIncompleteUpload,
			"not all parts uploaded: %d/%d", completed, session.PartCount)
	}
	return nil
}

// replayOrRetryDispatch handles Complete on an already-completed
// session: if dispatch already happened the prior result comes back
// verbatim, otherwise dispatch is retried without touching the object
// store again.
func (m *manager) replayOrRetryDispatch(ctx context.Context, session *types.UploadSession, in CompleteInput) (*FinalizedObject, error) {
	if session.DispatchMessageID != "" {
		m.log.Info("Complete replayed for already-completed session",
			"tracking_id", session.TrackingID,
			"message_id", session.DispatchMessageID,
		)
		return &FinalizedObject{
			TrackingID:       session.TrackingID,
			ObjectKey:        session.ObjectKey,
			Bucket:           session.BucketRef,
			ETag:             session.FinalETag,
			CDNURL:           m.cdnURL(session.ObjectKey),
			MessageID:        session.DispatchMessageID,
			IdempotencyKey:   session.IdempotencyKey,
			AlreadyCompleted: true,
		}, nil
	}
	out, err := m.dispatchCompleted(ctx, session, in.Priority, in.Metadata)
	if err != nil {
		return nil, err
	}
	out.AlreadyCompleted = true
	return out, nil
}

// dispatchCompleted publishes the completion event for a session that
// is already marked completed, then records the message id. Failure
// leaves the session completed with no message id, which is exactly
// the state the retry path looks for.
func (m *manager) dispatchCompleted(ctx context.Context, session *types.UploadSession, priority types.Priority, metadata map[string]string) (*FinalizedObject, error) {
	if err := m.catalogs.UpdateMediaKeys(ctx, session.TrackingID, session.PhotoKey, session.AudioKey, session.Language); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.Newf(errors.KindInternalInconsistency,
				"catalog record missing for session %s", session.TrackingID)
		}
		return nil, errors.Wrap(errors.KindTransientDependency, "update catalog record", err)
	}

	res, err := m.dispatcher.Publish(ctx, dispatch.PublishInput{
		TrackingID: session.TrackingID,
		TenantID:   session.TenantID,
		ArtisanID:  session.ArtisanID,
		PhotoKey:   session.PhotoKey,
		AudioKey:   session.AudioKey,
		Language:   session.Language,
		Priority:   priority,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	messageID := res.MessageID
	_, err = m.sessions.ConditionalUpdate(ctx, session.TrackingID,
		[]types.SessionState{types.SessionStateCompleted},
		store.SessionUpdate{
			DispatchMessageID: &messageID,
		})
	if err != nil && !stderrors.Is(err, store.ErrConflict) {
		// The event is out; losing the bookkeeping write only costs an
		// extra (deduplicated) publish on a later retry.
		m.log.Warn("failed to record dispatch message id",
			"tracking_id", session.TrackingID,
			"message_id", messageID,
			"error", err,
		)
	}

	if _, err := m.dispatcher.PublishStatusUpdate(ctx, session.TrackingID,
		string(status.StageUploaded), "success",
		"Upload accepted and queued for processing", "", nil); err != nil {
		m.log.Warn("status update publish failed", "tracking_id", session.TrackingID, "error", err)
	}

	return &FinalizedObject{
		TrackingID:     session.TrackingID,
		ObjectKey:      session.ObjectKey,
		Bucket:         session.BucketRef,
		ETag:           session.FinalETag,
		CDNURL:         m.cdnURL(session.ObjectKey),
		MessageID:      messageID,
		IdempotencyKey: res.IdempotencyKey,
	}, nil
}

func (m *manager) cdnURL(objectKey string) string {
	if m.cfg.CDNDomain == "" {
		return ""
	}
	return "https://" + m.cfg.CDNDomain + "/" + objectKey
}

func (m *manager) Abort(ctx context.Context, trackingID string) error {
	ctx, span := m.tracer.Start(ctx, "upload.Abort")
	defer span.End()
	span.SetAttributes(attribute.String("tracking_id", trackingID))
	return m.terminate(ctx, trackingID, types.SessionStateAborted)
}

func (m *manager) Expire(ctx context.Context, trackingID string) error {
	ctx, span := m.tracer.Start(ctx, "upload.Expire")
	defer span.End()
	span.SetAttributes(attribute.String("tracking_id", trackingID))
	return m.terminate(ctx, trackingID, types.SessionStateExpired)
}

func (m *manager) terminate(ctx context.Context, trackingID string, target types.SessionState) error {
	session, err := m.getSession(ctx, trackingID)
	if err != nil {
		return err
	}
	if session.State.Terminal() {
		// Aborting or expiring a finished session is a no-op.
		return nil
	}

	// Same lock as Complete: a terminator must not delete the part
	// prefix while a finalize is composing from it.
	release, acquired, err := m.locks.TryAcquire(ctx, trackingID, completionLockTTL)
	if err != nil {
		return errors.Wrap(errors.KindTransientDependency, "acquire completion lock", err)
	}
	if !acquired {
		return locker.ErrLockUnavailable(trackingID)
	}
	defer release()

	// Re-read under the lock; a completer may have won between the
	// fast path and the acquire.
	session, err = m.getSession(ctx, trackingID)
	if err != nil {
		return err
	}
	if session.State.Terminal() {
		return nil
	}

	if session.UploadToken != "" {
		if err := m.objects.AbortMultipartUpload(ctx, session.ObjectKey, session.UploadToken); err != nil {
			return errors.Wrap(errors.KindTransientDependency, "abort multipart upload", err)
		}
	}

	_, err = m.sessions.ConditionalUpdate(ctx, trackingID,
		[]types.SessionState{types.SessionStateInitiated, types.SessionStatePartsPending},
		store.SessionUpdate{State: &target})
	if err != nil {
		if stderrors.Is(err, store.ErrConflict) {
			// Lost the race to another terminator; the session is
			// terminal either way.
			return nil
		}
		return errors.Wrap(errors.KindTransientDependency, "mark session terminal", err)
	}

	m.log.Info("Upload session terminated", "tracking_id", trackingID, "state", target)
	return nil
}

func (m *manager) getSession(ctx context.Context, trackingID string) (*types.UploadSession, error) {
	if trackingID == "" {
		return nil, errors.New(errors.KindValidation, "trackingId is required")
	}
	session, err := m.sessions.Get(ctx, trackingID)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.Newf(errors.KindNotFound, "upload session %s not found", trackingID)
		}
		return nil, errors.Wrap(errors.KindTransientDependency, "read upload session", err)
	}
	return session, nil
}

func (m *manager) resolveMedia(session *types.UploadSession, in CompleteInput) (photoKey, audioKey, language string) {
	photoKey = in.PhotoKey
	audioKey = in.AudioKey
	if photoKey == "" && strings.HasPrefix(session.ContentType, "image/") {
		photoKey = session.ObjectKey
	}
	if audioKey == "" && strings.HasPrefix(session.ContentType, "audio/") {
		audioKey = session.ObjectKey
	}
	language = in.Language
	if language == "" {
		language = m.defaultLanguage()
	}
	return photoKey, audioKey, language
}

func (m *manager) defaultLanguage() string {
	if len(m.cfg.SupportedLanguages) > 0 {
		return m.cfg.SupportedLanguages[0]
	}
	return "hi"
}

func countDistinctParts(session *types.UploadSession) int {
	seen := make(map[int]struct{}, len(session.Parts))
	for _, p := range session.Parts {
		seen[p.PartNumber] = struct{}{}
	}
	return len(seen)
}

// collectOrderedParts sorts the recorded parts ascending and verifies
// they form exactly 1..partCount. A gap or duplicate here is a broken
// invariant, not a user error: recording enforced the range and the
// store enforced uniqueness.
func collectOrderedParts(session *types.UploadSession) ([]types.CompletedPart, error) {
	parts := make([]types.CompletedPart, 0, len(session.Parts))
	for _, p := range session.Parts {
		parts = append(parts, types.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })

	if len(parts) != session.PartCount {
		return nil, errors.Newf(errors.KindInternalInconsistency,
			"part count mismatch at finalize: have %d, want %d", len(parts), session.PartCount)
	}
	for i, p := range parts {
		if p.PartNumber != i+1 {
			return nil, errors.Newf(errors.KindInternalInconsistency,
				"part number sequence broken at finalize: position %d holds part %d", i+1, p.PartNumber)
		}
	}
	return parts, nil
}
