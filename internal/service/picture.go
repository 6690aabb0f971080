package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/barguni/barguni-api/internal/apperr"
	"github.com/barguni/barguni-api/internal/asset"
	"github.com/barguni/barguni-api/internal/model"
)

type PictureService interface {
	GetPicture(ctx context.Context, id uuid.UUID) (model.Picture, error)
	// OpenPicture returns the picture and its content. The caller closes the
	// reader.
	OpenPicture(ctx context.Context, id uuid.UUID) (model.Picture, io.ReadCloser, error)
}

type PictureStore interface {
	Get(ctx context.Context, id uuid.UUID) (model.Picture, error)
	Open(ctx context.Context, id uuid.UUID) (model.Picture, io.ReadCloser, error)
}

type pictureService struct {
	store PictureStore
}

func NewPictureService(store PictureStore) PictureService {
	return &pictureService{store: store}
}

func (s *pictureService) GetPicture(ctx context.Context, id uuid.UUID) (model.Picture, error) {
	picture, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, asset.ErrPictureNotFound) {
			return model.Picture{}, apperr.PictureNotFoundErr
		}
		return model.Picture{}, fmt.Errorf("asset store get: %w", err)
	}

	return picture, nil
}

func (s *pictureService) OpenPicture(ctx context.Context, id uuid.UUID) (model.Picture, io.ReadCloser, error) {
	picture, rc, err := s.store.Open(ctx, id)
	if err != nil {
		if errors.Is(err, asset.ErrPictureNotFound) {
			return model.Picture{}, nil, apperr.PictureNotFoundErr
		}
		return model.Picture{}, nil, fmt.Errorf("asset store open: %w", err)
	}

	return picture, rc, nil
}
