package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/craftbridge/catalog-backend/internal/pkg/errors"
	"github.com/craftbridge/catalog-backend/internal/upload"
)

// stubManager lets each test script one operation's outcome.
type stubManager struct {
	initiate   func(context.Context, upload.InitiateInput) (*upload.SessionHandle, error)
	recordPart func(context.Context, string, int, string) (*upload.ResumeState, error)
	resume     func(context.Context, string) (*upload.ResumeInfo, error)
	complete   func(context.Context, upload.CompleteInput) (*upload.FinalizedObject, error)
	abort      func(context.Context, string) error
}

func (s *stubManager) Initiate(ctx context.Context, in upload.InitiateInput) (*upload.SessionHandle, error) {
	return s.initiate(ctx, in)
}
func (s *stubManager) RecordPartCompletion(ctx context.Context, trackingID string, partNumber int, etag string) (*upload.ResumeState, error) {
	return s.recordPart(ctx, trackingID, partNumber, etag)
}
func (s *stubManager) GetResumeInfo(ctx context.Context, trackingID string) (*upload.ResumeInfo, error) {
	return s.resume(ctx, trackingID)
}
func (s *stubManager) Complete(ctx context.Context, in upload.CompleteInput) (*upload.FinalizedObject, error) {
	return s.complete(ctx, in)
}
func (s *stubManager) Abort(ctx context.Context, trackingID string) error {
	return s.abort(ctx, trackingID)
}
func (s *stubManager) Expire(ctx context.Context, trackingID string) error { return nil }

func newTestRouter(m upload.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	uh := NewUploadHandler(m)
	r := gin.New()
	r.POST("/v1/catalog/upload/initiate", uh.Initiate)
	r.POST("/v1/catalog/upload/complete", uh.Complete)
	r.POST("/v1/catalog/upload/:trackingId/parts", uh.RecordPart)
	r.GET("/v1/catalog/upload/:trackingId/resume", uh.Resume)
	r.POST("/v1/catalog/upload/:trackingId/abort", uh.Abort)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestInitiate_ReturnsCreatedHandle(t *testing.T) {
	m := &stubManager{
		initiate: func(ctx context.Context, in upload.InitiateInput) (*upload.SessionHandle, error) {
			if in.TenantID != "t1" || in.ContentType != "image/jpeg" || in.TotalSize != 12582912 {
				t.Fatalf("input not bound: %+v", in)
			}
			return &upload.SessionHandle{
				TrackingID: "trk_0011223344556677",
				ObjectKey:  "t1/a1/trk_0011223344556677.jpg",
				Multipart:  true,
				PartCount:  3,
			}, nil
		},
	}
	r := newTestRouter(m)

	rec := doJSON(t, r, http.MethodPost, "/v1/catalog/upload/initiate",
		`{"tenantId":"t1","artisanId":"a1","contentType":"image/jpeg","totalSize":12582912}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var handle upload.SessionHandle
	if err := json.Unmarshal(rec.Body.Bytes(), &handle); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if handle.TrackingID != "trk_0011223344556677" || handle.PartCount != 3 {
		t.Fatalf("unexpected handle: %+v", handle)
	}
}

func TestErrorKindsMapToStatuses(t *testing.T) {
	cases := []struct {
		kind errors.Kind
		want int
	}{
		{errors.KindValidation, http.StatusBadRequest},
		{errors.KindNotFound, http.StatusNotFound},
		{errors.KindInvalidState, http.StatusConflict},
		{errors.KindIncompleteUpload, http.StatusConflict},
		{errors.KindTransientDependency, http.StatusServiceUnavailable},
		{errors.KindInternalInconsistency, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			m := &stubManager{
				complete: func(ctx context.Context, in upload.CompleteInput) (*upload.FinalizedObject, error) {
					return nil, errors.New(tc.kind, "scripted failure")
				},
			}
			r := newTestRouter(m)

			rec := doJSON(t, r, http.MethodPost, "/v1/catalog/upload/complete",
				`{"trackingId":"trk_0011223344556677"}`)

			if rec.Code != tc.want {
				t.Fatalf("kind %q: got status %d, want %d", tc.kind, rec.Code, tc.want)
			}
			var env struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("bad error body: %v", err)
			}
			if env.Error.Code != string(tc.kind) {
				t.Fatalf("error code: got=%q want=%q", env.Error.Code, tc.kind)
			}
		})
	}
}

func TestRecordPart_BindsPathAndBody(t *testing.T) {
	m := &stubManager{
		recordPart: func(ctx context.Context, trackingID string, partNumber int, etag string) (*upload.ResumeState, error) {
			if trackingID != "trk_0011223344556677" || partNumber != 2 || etag != "abc" {
				t.Fatalf("unexpected args: %s %d %s", trackingID, partNumber, etag)
			}
			return &upload.ResumeState{TrackingID: trackingID, CompletedParts: 2, TotalParts: 3}, nil
		},
	}
	r := newTestRouter(m)

	rec := doJSON(t, r, http.MethodPost, "/v1/catalog/upload/trk_0011223344556677/parts",
		`{"partNumber":2,"eTag":"abc"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestInitiate_MalformedBodyIsBadRequest(t *testing.T) {
	m := &stubManager{
		initiate: func(ctx context.Context, in upload.InitiateInput) (*upload.SessionHandle, error) {
			t.Fatalf("manager must not be reached on a malformed body")
			return nil, nil
		},
	}
	r := newTestRouter(m)

	rec := doJSON(t, r, http.MethodPost, "/v1/catalog/upload/initiate", `{"tenantId":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
