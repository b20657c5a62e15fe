package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader-api/internal/dto"
	"github.com/noah-isme/gema-grader-api/internal/observability"
)

var (
	// ErrUploadMissing indicates the request carried no file.
	ErrUploadMissing = errors.New("file is required")
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the content is not a supported image.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// allowedImageTypes lists the formats the vision models accept, keyed by detected MIME type.
var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FileStorage abstracts upload destinations. The returned location is accepted as an evaluation path.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates and stores answer images.
type UploadService interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (dto.UploadResponse, error)
}

type uploadService struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(storage FileStorage, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		storage: storage,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/gema-grader-api/internal/service/upload"),
	}
}

func (s *uploadService) Upload(ctx context.Context, file *multipart.FileHeader) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, s.reject("missing", ErrUploadMissing, span)
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		return dto.UploadResponse{}, s.reject("size", ErrUploadTooLarge, span)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.UploadResponse{}, s.reject("size", ErrUploadTooLarge, span)
	}

	detected := mimetype.Detect(buf.Bytes()).String()
	span.SetAttributes(attribute.String("upload.detected_mime", detected))
	ext, ok := allowedImageTypes[detected]
	if !ok {
		return dto.UploadResponse{}, s.reject("type", ErrUploadTypeNotAllowed, span)
	}

	sum := sha256.Sum256(buf.Bytes())
	checksum := hex.EncodeToString(sum[:])
	name := fmt.Sprintf("%s-%s%s", sanitizeFileName(file.Filename), checksum[:12], ext)
	span.SetAttributes(
		attribute.String("upload.sanitized_name", name),
		attribute.Int64("upload.size_bytes", int64(buf.Len())),
	)

	location, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.Uploads().WithLabelValues("storage_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.UploadResponse{}, fmt.Errorf("store upload: %w", err)
	}

	observability.Uploads().WithLabelValues("stored").Inc()
	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().Str("file_name", name).Str("mime_type", detected).Int("size_bytes", buf.Len()).Msg("answer image stored")

	return dto.UploadResponse{
		Path:      location,
		SizeBytes: int64(buf.Len()),
		MimeType:  detected,
		Checksum:  checksum,
		FileName:  name,
	}, nil
}

func (s *uploadService) reject(reason string, err error, span trace.Span) error {
	observability.Uploads().WithLabelValues("rejected_" + reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

// sanitizeFileName reduces a client file name to a lowercase slug without extension.
func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" || base == "." {
		base = "answer"
	}
	if len(base) > 64 {
		base = base[:64]
	}
	return base
}
