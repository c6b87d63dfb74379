package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	platformlogging "github.com/voxcampus/voxcampus-platform/platform/go/logging"
	"github.com/voxcampus/voxcampus-platform/platform/go/storage"
	"github.com/voxcampus/voxcampus-platform/platform/go/tenant"
)

// Domain sentinel errors.
var (
	ErrNotFound      = errors.New("file not found")
	ErrNoInstitution = errors.New("request has no institution")
	ErrInvalidFile   = errors.New("invalid file")
	ErrTooLarge      = errors.New("file exceeds the upload limit")
)

// DefaultMaxBytes caps uploads when no limit is configured.
const DefaultMaxBytes int64 = 10 << 20

// File describes a stored object.
type File struct {
	ID            string
	InstitutionID string
	Key           string
	ContentType   string
	Size          int64
}

// UploadInput is a single upload. Size may be -1 when unknown.
type UploadInput struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// Tracker records uploaded objects for demo sessions.
type Tracker interface {
	TrackFile(ctx context.Context, key string)
}

// Service stores files under the caller's institution prefix.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (File, error)
	Delete(ctx context.Context, fileID string) error
	// Purge removes an object by key; absent objects are not an error.
	Purge(ctx context.Context, key string) error
}

type service struct {
	store    storage.FileStore
	tracker  Tracker
	maxBytes int64
	logger   *zap.Logger
}

// New constructs a files Service. tracker may be nil; maxBytes <= 0 selects DefaultMaxBytes.
func New(store storage.FileStore, tracker Tracker, maxBytes int64, logger *zap.Logger) Service {
	if store == nil {
		panic("file store is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{store: store, tracker: tracker, maxBytes: maxBytes, logger: logger}
}

func (s *service) Upload(ctx context.Context, input UploadInput) (File, error) {
	access, ok := tenant.FromContext(ctx)
	if !ok || access.InstitutionID == "" {
		return File{}, ErrNoInstitution
	}
	if input.Body == nil {
		return File{}, fmt.Errorf("%w: body is required", ErrInvalidFile)
	}
	if input.Size > s.maxBytes {
		return File{}, ErrTooLarge
	}
	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileID := uuid.NewString()
	key, err := storage.FileKey(access.InstitutionID, fileID)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	body := &limitedReader{r: input.Body, remaining: s.maxBytes}
	err = s.store.Put(ctx, key, body, input.Size, contentType)
	if body.exceeded {
		_ = s.store.Delete(ctx, key)
		return File{}, ErrTooLarge
	}
	if err != nil {
		return File{}, fmt.Errorf("store file: %w", err)
	}

	if s.tracker != nil {
		s.tracker.TrackFile(ctx, key)
	}
	platformlogging.FromContextOr(ctx, s.logger).Info("file uploaded", zap.String("key", key), zap.Int64("size", body.read))

	return File{ID: fileID, InstitutionID: access.InstitutionID, Key: key, ContentType: contentType, Size: body.read}, nil
}

func (s *service) Delete(ctx context.Context, fileID string) error {
	access, ok := tenant.FromContext(ctx)
	if !ok || access.InstitutionID == "" {
		return ErrNoInstitution
	}
	key, err := storage.FileKey(access.InstitutionID, fileID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return s.store.Delete(ctx, key)
}

func (s *service) Purge(ctx context.Context, key string) error {
	if _, _, ok := storage.ParseFileKey(key); !ok {
		return fmt.Errorf("%w: unexpected key %q", ErrInvalidFile, key)
	}
	return s.store.Delete(ctx, key)
}

// limitedReader stops after remaining bytes and records that the limit was hit.
type limitedReader struct {
	r         io.Reader
	remaining int64
	read      int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			l.exceeded = true
			return 0, ErrTooLarge
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		return 0, io.EOF
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	l.read += int64(n)
	return n, err
}
