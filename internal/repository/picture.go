package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/storage/db"
)

type PictureRepository interface {
	WithDB(db db.DB) PictureRepository
	CreatePicture(ctx context.Context, picture model.Picture) error
	GetPictureByID(ctx context.Context, id uuid.UUID) (model.Picture, error)
}

type pictureRepository struct {
	db db.DB
}

func NewPictureRepository(db db.DB) PictureRepository {
	return &pictureRepository{db: db}
}

func (r pictureRepository) WithDB(db db.DB) PictureRepository {
	return &pictureRepository{db: db}
}

func (r pictureRepository) CreatePicture(ctx context.Context, picture model.Picture) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pictures (id, usage, extension, storage_key, url, size, created_at)
		VALUES (@id, @usage, @extension, @storage_key, @url, @size, @created_at)
	`, pgx.NamedArgs{
		"id":          picture.ID,
		"usage":       string(picture.Usage),
		"extension":   picture.Extension,
		"storage_key": picture.StorageKey,
		"url":         picture.URL,
		"size":        picture.Size,
		"created_at":  picture.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("create picture: %w", err)
	}

	return nil
}

func (r pictureRepository) GetPictureByID(ctx context.Context, id uuid.UUID) (model.Picture, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, usage, extension, storage_key, url, size, created_at
		FROM pictures
		WHERE id = $1
	`, id)
	if err != nil {
		return model.Picture{}, fmt.Errorf("get picture %s: %w", id, err)
	}

	picture, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (model.Picture, error) {
		var (
			p     model.Picture
			usage string
		)
		err := row.Scan(&p.ID, &usage, &p.Extension, &p.StorageKey, &p.URL, &p.Size, &p.CreatedAt)
		p.Usage = model.PictureUsage(usage)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Picture{}, ErrNotFound
		}
		return model.Picture{}, fmt.Errorf("get picture %s: %w", id, err)
	}

	return picture, nil
}
