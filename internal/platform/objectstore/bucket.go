package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/craftbridge/catalog-backend/internal/platform/logger"
	"github.com/craftbridge/catalog-backend/internal/types"
)

// ObjectStore is the narrow surface the upload core needs from durable
// object storage: direct-upload URLs plus multi-part finalize/abort.
//
// GCS has no native S3-style multipart session, so the upload token
// names a part-object prefix under the final key; finalize composes the
// ordered part objects into the final object and abandons the prefix.
type ObjectStore interface {
	IssuePresignedPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	CreateMultipartUpload(ctx context.Context, key, contentType string, metadata map[string]string) (string, error)
	IssuePresignedUploadPart(ctx context.Context, key, uploadToken string, partNumber int, ttl time.Duration) (string, error)
	FinalizeMultipartUpload(ctx context.Context, key, uploadToken, contentType string, orderedParts []types.CompletedPart) (string, error)
	AbortMultipartUpload(ctx context.Context, key, uploadToken string) error
	BucketName() string
}

// Compose accepts at most this many source objects per call.
const composeBatchSize = 32

const opTimeout = 30 * time.Second

type gcsStore struct {
	log          *logger.Logger
	client       *storage.Client
	bucket       string
	mode         StorageMode
	emulatorHost string
}

func NewGCSStore(log *logger.Logger, bucket string) (ObjectStore, error) {
	cfg, err := ResolveStorageConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("resolve object storage config: %w", err)
	}
	return NewGCSStoreWithConfig(log, bucket, cfg)
}

func NewGCSStoreWithConfig(log *logger.Logger, bucket string, cfg StorageConfig) (ObjectStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("object store bucket name required")
	}
	serviceLog := log.With("service", "ObjectStore")

	ctx := context.Background()
	var client *storage.Client
	var err error
	switch cfg.Mode {
	case StorageModeGCS:
		opts := clientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		client, err = storage.NewClient(ctx, opts...)
	case StorageModeGCSEmulator:
		client, err = storage.NewClient(ctx, option.WithoutAuthentication(), option.WithEndpoint(strings.TrimRight(cfg.EmulatorHost, "/")+"/storage/v1/"))
	default:
		return nil, fmt.Errorf("unsupported object storage mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"mode", cfg.Mode,
		"emulator_host", cfg.EmulatorHost,
		"bucket", bucket,
	)

	return &gcsStore{
		log:          serviceLog,
		client:       client,
		bucket:       bucket,
		mode:         cfg.Mode,
		emulatorHost: strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"),
	}, nil
}

func (s *gcsStore) BucketName() string { return s.bucket }

func (s *gcsStore) IssuePresignedPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	if s.mode == StorageModeGCSEmulator {
		return s.emulatorUploadURL(key), nil
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		Expires:     time.Now().Add(ttl),
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("sign PUT url for %q: %w", key, err)
	}
	return u, nil
}

// CreateMultipartUpload reserves a part prefix for the key and records
// the caller's metadata on a zero-byte marker object, so an orphaned
// session can be attributed during cleanup.
func (s *gcsStore) CreateMultipartUpload(ctx context.Context, key, contentType string, metadata map[string]string) (string, error) {
	token := newUploadToken()

	ctx2, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(s.markerObject(key, token)).NewWriter(ctx2)
	w.ContentType = "application/json"
	w.Metadata = metadata
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("create upload marker for %q: %w", key, err)
	}
	return token, nil
}

func (s *gcsStore) IssuePresignedUploadPart(ctx context.Context, key, uploadToken string, partNumber int, ttl time.Duration) (string, error) {
	if partNumber < 1 {
		return "", fmt.Errorf("part number must be >= 1, got %d", partNumber)
	}
	partKey := s.partObject(key, uploadToken, partNumber)
	if s.mode == StorageModeGCSEmulator {
		return s.emulatorUploadURL(partKey), nil
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(partKey, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodPut,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign part url for %q part %d: %w", key, partNumber, err)
	}
	return u, nil
}

// FinalizeMultipartUpload composes the ordered part objects into the
// final object and deletes the part prefix. Parts must arrive sorted
// strictly ascending; the caller owns that invariant.
func (s *gcsStore) FinalizeMultipartUpload(ctx context.Context, key, uploadToken, contentType string, orderedParts []types.CompletedPart) (string, error) {
	if len(orderedParts) == 0 {
		return "", fmt.Errorf("finalize %q: no parts", key)
	}
	if !sort.SliceIsSorted(orderedParts, func(i, j int) bool {
		return orderedParts[i].PartNumber < orderedParts[j].PartNumber
	}) {
		return "", fmt.Errorf("finalize %q: parts not sorted ascending", key)
	}

	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	bkt := s.client.Bucket(s.bucket)
	srcs := make([]*storage.ObjectHandle, 0, len(orderedParts))
	for _, p := range orderedParts {
		srcs = append(srcs, bkt.Object(s.partObject(key, uploadToken, p.PartNumber)))
	}

	// Collapse >32 parts through intermediate compose objects. The
	// intermediates live under the part prefix, so the cleanup below
	// removes them too.
	round := 0
	for len(srcs) > composeBatchSize {
		next := make([]*storage.ObjectHandle, 0, (len(srcs)+composeBatchSize-1)/composeBatchSize)
		for i := 0; i < len(srcs); i += composeBatchSize {
			end := i + composeBatchSize
			if end > len(srcs) {
				end = len(srcs)
			}
			dst := bkt.Object(fmt.Sprintf("%s/compose-%d-%d", s.partPrefix(key, uploadToken), round, i/composeBatchSize))
			if _, err := dst.ComposerFrom(srcs[i:end]...).Run(ctx2); err != nil {
				return "", fmt.Errorf("compose batch for %q: %w", key, err)
			}
			next = append(next, dst)
		}
		srcs = next
		round++
	}

	composer := bkt.Object(key).ComposerFrom(srcs...)
	composer.ContentType = contentType
	attrs, err := composer.Run(ctx2)
	if err != nil {
		return "", fmt.Errorf("compose %q: %w", key, err)
	}

	// Part objects are garbage once the final object exists. Cleanup is
	// best effort; a leftover prefix is an inventory problem, not a
	// correctness one.
	if err := s.deletePrefix(ctx2, s.partPrefix(key, uploadToken)); err != nil {
		s.log.Warn("part prefix cleanup failed after finalize",
			"object_key", key,
			"upload_token", uploadToken,
			"error", err,
		)
	}

	return attrs.Etag, nil
}

func (s *gcsStore) AbortMultipartUpload(ctx context.Context, key, uploadToken string) error {
	ctx2, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.deletePrefix(ctx2, s.partPrefix(key, uploadToken)); err != nil {
		return fmt.Errorf("abort multipart upload for %q: %w", key, err)
	}
	return nil
}

func (s *gcsStore) deletePrefix(ctx context.Context, prefix string) error {
	bkt := s.client.Bucket(s.bucket)
	it := bkt.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
			return fmt.Errorf("delete %q: %w", attrs.Name, err)
		}
	}
	return nil
}

func (s *gcsStore) partPrefix(key, token string) string {
	return fmt.Sprintf("%s.parts/%s", key, token)
}

func (s *gcsStore) partObject(key, token string, partNumber int) string {
	return fmt.Sprintf("%s/%05d", s.partPrefix(key, token), partNumber)
}

func (s *gcsStore) markerObject(key, token string) string {
	return fmt.Sprintf("%s/.upload", s.partPrefix(key, token))
}

func newUploadToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func (s *gcsStore) emulatorUploadURL(key string) string {
	return fmt.Sprintf(
		"%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		s.emulatorHost,
		url.PathEscape(s.bucket),
		url.QueryEscape(key),
	)
}
