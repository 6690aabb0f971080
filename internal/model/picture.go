package model

import (
	"time"

	"github.com/google/uuid"
)

// PictureUsage tells which kind of entity a picture belongs to.
type PictureUsage string

const (
	PictureUsageItem PictureUsage = "ITEM"
)

// Picture is a stored image asset.
type Picture struct {
	ID         uuid.UUID    `json:"id"`
	Usage      PictureUsage `json:"usage"`
	Extension  string       `json:"extension"`
	StorageKey string       `json:"-"`
	URL        string       `json:"url"`
	Size       int64        `json:"size"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ContentType returns the image media type for the picture's extension.
func (p Picture) ContentType() string {
	switch p.Extension {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "":
		return "application/octet-stream"
	default:
		return "image/" + p.Extension
	}
}
