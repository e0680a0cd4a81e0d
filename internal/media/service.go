package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/0111v/projeto-faculdade/pkg/config"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/security"
)

const (
	defaultMaxUploadBytes = 5 * 1024 * 1024
	sniffLen              = 3072
	randomSuffixLen       = 6
)

type objectStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) error
	DeleteObject(ctx context.Context, bucket, object string) error
	PublicURL(object string) string
	ObjectFromURL(rawURL string) (string, bool)
}

// Service stores and removes product images.
type Service interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	DeleteByURL(ctx context.Context, imageURL string) error
}

// UploadInput is a single image received from a multipart form.
type UploadInput struct {
	FileName string
	Size     int64
	Body     io.Reader
}

// UploadResult is returned to the client once the object is stored.
type UploadResult struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

type service struct {
	store      objectStore
	logg       *logger.Logger
	maxBytes   int64
	allowed    map[string]struct{}
	pathPrefix string
	now        func() time.Time
	randSuffix func(int) (string, error)
}

// NewService constructs the image service from media config.
func NewService(store objectStore, cfg config.MediaConfig, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	maxBytes := cfg.MaxUploadBytes()
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	prefix := strings.Trim(strings.TrimSpace(cfg.PathPrefix), "/")
	if prefix == "" {
		prefix = "products"
	}
	return &service{
		store:      store,
		logg:       logg,
		maxBytes:   maxBytes,
		allowed:    normalizeAllowed(cfg.AllowedTypes),
		pathPrefix: prefix,
		now:        time.Now,
		randSuffix: security.RandomString,
	}, nil
}

func (s *service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if input.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no file provided")
	}
	if input.Size > s.maxBytes {
		return nil, s.tooLarge()
	}

	// read one byte past the limit so oversize bodies with a lying size are caught
	data, err := io.ReadAll(io.LimitReader(input.Body, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read file")
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no file provided")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, s.tooLarge()
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	contentType := detectMimeType(head)
	if _, ok := s.allowed[contentType]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid file type; use %s", allowedDescription(s.allowed))).
			WithDetails(map[string]any{"detected_type": contentType})
	}

	object, err := s.objectName(contentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate object name")
	}

	if err := s.store.Upload(ctx, object, contentType, bytes.NewReader(data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload failed")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"object":       object,
			"content_type": contentType,
			"size":         len(data),
			"file_name":    input.FileName,
		})
		s.logg.Info(logCtx, "media.uploaded")
	}

	return &UploadResult{URL: s.store.PublicURL(object), Path: object}, nil
}

// DeleteByURL removes the object behind a public URL. URLs outside the bucket are ignored.
func (s *service) DeleteByURL(ctx context.Context, imageURL string) error {
	object, ok := s.store.ObjectFromURL(strings.TrimSpace(imageURL))
	if !ok {
		return nil
	}
	if err := s.store.DeleteObject(ctx, "", object); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete image")
	}
	return nil
}

func (s *service) objectName(contentType string) (string, error) {
	suffix, err := s.randSuffix(randomSuffixLen)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%d-%s.%s", s.now().UnixMilli(), suffix, extensionsByMime[contentType])
	return path.Join(s.pathPrefix, name), nil
}

func (s *service) tooLarge() error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("file too large; maximum %dMB", s.maxBytes/(1024*1024)))
}
