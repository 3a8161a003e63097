package upload

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/craftbridge/catalog-backend/internal/dispatch"
	"github.com/craftbridge/catalog-backend/internal/store"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// fakeSessionStore mimics the repo contract in memory, including the
// conditional-update and upsert semantics the manager leans on.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*types.UploadSession
	parts    map[string]map[int]string // trackingID -> partNumber -> etag
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: map[string]*types.UploadSession{},
		parts:    map[string]map[int]string{},
	}
}

func (f *fakeSessionStore) Create(ctx context.Context, session *types.UploadSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.TrackingID]; ok {
		return fmt.Errorf("duplicate tracking id %s", session.TrackingID)
	}
	cp := *session
	f.sessions[session.TrackingID] = &cp
	return nil
}

func (f *fakeSessionStore) Get(ctx context.Context, trackingID string) (*types.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getLocked(trackingID)
}

func (f *fakeSessionStore) getLocked(trackingID string) (*types.UploadSession, error) {
	s, ok := f.sessions[trackingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	cp.Parts = nil
	nums := make([]int, 0, len(f.parts[trackingID]))
	for n := range f.parts[trackingID] {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		cp.Parts = append(cp.Parts, types.UploadPart{
			TrackingID: trackingID,
			PartNumber: n,
			ETag:       f.parts[trackingID][n],
		})
	}
	return &cp, nil
}

func (f *fakeSessionStore) RecordPart(ctx context.Context, trackingID string, partNumber int, etag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.parts[trackingID] == nil {
		f.parts[trackingID] = map[int]string{}
	}
	f.parts[trackingID][partNumber] = etag
	return nil
}

func (f *fakeSessionStore) ConditionalUpdate(ctx context.Context, trackingID string, expected []types.SessionState, upd store.SessionUpdate) (*types.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[trackingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	matched := len(expected) == 0
	for _, st := range expected {
		if s.State == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, store.ErrConflict
	}
	if upd.State != nil {
		s.State = *upd.State
	}
	if upd.CompletedAt != nil {
		t := *upd.CompletedAt
		s.CompletedAt = &t
	}
	if upd.FinalETag != nil {
		s.FinalETag = *upd.FinalETag
	}
	if upd.PhotoKey != nil {
		s.PhotoKey = *upd.PhotoKey
	}
	if upd.AudioKey != nil {
		s.AudioKey = *upd.AudioKey
	}
	if upd.Language != nil {
		s.Language = *upd.Language
	}
	if upd.IdempotencyKey != nil {
		s.IdempotencyKey = *upd.IdempotencyKey
	}
	if upd.DispatchMessageID != nil {
		s.DispatchMessageID = *upd.DispatchMessageID
	}
	s.UpdatedAt = time.Now().UTC()
	return f.getLocked(trackingID)
}

func (f *fakeSessionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*types.UploadSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.UploadSession
	for _, s := range f.sessions {
		if s.ExpiresAt.Before(now) &&
			(s.State == types.SessionStateInitiated || s.State == types.SessionStatePartsPending) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCatalogStore struct {
	mu      sync.Mutex
	records map[string]*types.CatalogRecord
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{records: map[string]*types.CatalogRecord{}}
}

func (f *fakeCatalogStore) Create(ctx context.Context, record *types.CatalogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	f.records[record.TrackingID] = &cp
	return nil
}

func (f *fakeCatalogStore) Get(ctx context.Context, trackingID string) (*types.CatalogRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[trackingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeCatalogStore) UpdateMediaKeys(ctx context.Context, trackingID, photoKey, audioKey, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[trackingID]
	if !ok {
		return store.ErrNotFound
	}
	if photoKey != "" {
		r.PhotoKey = photoKey
	}
	if audioKey != "" {
		r.AudioKey = audioKey
	}
	if language != "" {
		r.Language = language
	}
	return nil
}

// fakeObjectStore records calls; URLs are deterministic strings so
// tests can assert shapes without a bucket.
type fakeObjectStore struct {
	mu            sync.Mutex
	bucket        string
	finalizeCalls int
	abortCalls    int
	finalizedKeys []string
	finalizeErr   error
	onFinalize    func() // runs at the top of FinalizeMultipartUpload
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{bucket: "test-bucket"}
}

func (f *fakeObjectStore) IssuePresignedPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (f *fakeObjectStore) CreateMultipartUpload(ctx context.Context, key, contentType string, metadata map[string]string) (string, error) {
	return "token-" + key, nil
}

func (f *fakeObjectStore) IssuePresignedUploadPart(ctx context.Context, key, uploadToken string, partNumber int, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://signed.example/%s/part/%d", key, partNumber), nil
}

func (f *fakeObjectStore) FinalizeMultipartUpload(ctx context.Context, key, uploadToken, contentType string, parts []types.CompletedPart) (string, error) {
	if f.onFinalize != nil {
		f.onFinalize()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return "", f.finalizeErr
	}
	f.finalizeCalls++
	f.finalizedKeys = append(f.finalizedKeys, key)
	return fmt.Sprintf("etag-%s-%d", key, len(parts)), nil
}

func (f *fakeObjectStore) AbortMultipartUpload(ctx context.Context, key, uploadToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
	return nil
}

func (f *fakeObjectStore) BucketName() string { return f.bucket }

// fakeDispatcher counts publishes per idempotency key, mirroring the
// dedup a real transport would apply.
type fakeDispatcher struct {
	mu        sync.Mutex
	published []dispatch.PublishInput
	byKey     map[string]int
	statusOut []string
	err       error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{byKey: map[string]int{}}
}

func (f *fakeDispatcher) Publish(ctx context.Context, in dispatch.PublishInput) (dispatch.DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return dispatch.DispatchResult{}, f.err
	}
	key := dispatch.IdempotencyKey(in.TrackingID, in.TenantID, in.ArtisanID)
	f.byKey[key]++
	f.published = append(f.published, in)
	return dispatch.DispatchResult{
		MessageID:      fmt.Sprintf("msg-%s-%d", key[:8], f.byKey[key]),
		IdempotencyKey: key,
		Duplicate:      f.byKey[key] > 1,
	}, nil
}

func (f *fakeDispatcher) PublishStatusUpdate(ctx context.Context, trackingID, stage, status, message, catalogID string, errorDetails map[string]string) (dispatch.DispatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusOut = append(f.statusOut, trackingID+":"+stage)
	return dispatch.DispatchResult{MessageID: "status-msg"}, nil
}
