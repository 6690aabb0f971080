// Package asset persists uploaded images as pictures.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/repository"
)

// ErrPictureNotFound is returned by Get and Open for unknown picture ids.
var ErrPictureNotFound = errors.New("asset: picture not found")

// Upload is an image to be stored.
type Upload struct {
	// Name is informational, used for logging only.
	Name      string
	Usage     model.PictureUsage
	Extension string
	Data      []byte
}

// BlobStore keeps picture bytes.
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Store writes the blob first and then records the picture row. A blob whose
// row could not be inserted is removed again.
type Store struct {
	logger      *slog.Logger
	blobs       BlobStore
	pictureRepo repository.PictureRepository
	baseURL     string
}

func NewStore(logger *slog.Logger, blobs BlobStore, pictureRepo repository.PictureRepository, baseURL string) *Store {
	return &Store{
		logger:      logger.With(slog.String("service", "asset")),
		blobs:       blobs,
		pictureRepo: pictureRepo,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

func (s *Store) Store(ctx context.Context, up Upload) (model.Picture, error) {
	if len(up.Data) == 0 {
		return model.Picture{}, errors.New("asset: empty upload")
	}
	ext := strings.ToLower(strings.TrimPrefix(up.Extension, "."))
	if ext == "" {
		return model.Picture{}, errors.New("asset: extension is required")
	}
	if up.Usage == "" {
		up.Usage = model.PictureUsageItem
	}

	id, err := uuid.NewV7()
	if err != nil {
		return model.Picture{}, fmt.Errorf("generate picture id: %w", err)
	}

	key, err := s.blobs.Write(ctx, fmt.Sprintf("%s/%s.%s", strings.ToLower(string(up.Usage)), id, ext), up.Data)
	if err != nil {
		return model.Picture{}, fmt.Errorf("write blob: %w", err)
	}

	picture := model.Picture{
		ID:         id,
		Usage:      up.Usage,
		Extension:  ext,
		StorageKey: key,
		URL:        fmt.Sprintf("%s/%s/content", s.baseURL, id),
		Size:       int64(len(up.Data)),
		CreatedAt:  time.Now(),
	}

	if err := s.pictureRepo.CreatePicture(ctx, picture); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove orphaned blob",
				slog.String("key", key),
				slog.Any("error", delErr),
			)
		}
		return model.Picture{}, fmt.Errorf("create picture: %w", err)
	}

	s.logger.InfoContext(ctx, "picture stored",
		slog.String("picture_id", id.String()),
		slog.String("name", up.Name),
		slog.Int64("size", picture.Size),
	)

	return picture, nil
}

// Get returns the picture metadata.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (model.Picture, error) {
	picture, err := s.pictureRepo.GetPictureByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Picture{}, ErrPictureNotFound
		}
		return model.Picture{}, fmt.Errorf("get picture: %w", err)
	}
	return picture, nil
}

// Open returns the picture metadata and a reader for its bytes. The caller
// closes the reader.
func (s *Store) Open(ctx context.Context, id uuid.UUID) (model.Picture, io.ReadCloser, error) {
	picture, err := s.Get(ctx, id)
	if err != nil {
		return model.Picture{}, nil, err
	}

	rc, err := s.blobs.Open(ctx, picture.StorageKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return model.Picture{}, nil, ErrPictureNotFound
		}
		return model.Picture{}, nil, fmt.Errorf("open blob: %w", err)
	}

	return picture, rc, nil
}
