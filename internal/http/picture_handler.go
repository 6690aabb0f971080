package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/service"
)

type PictureResponse struct {
	ID        uuid.UUID          `json:"id"`
	Usage     model.PictureUsage `json:"usage"`
	Extension string             `json:"extension"`
	URL       string             `json:"url"`
	Size      int64              `json:"size"`
	CreatedAt time.Time          `json:"createdAt"`
}

func newPictureResponse(p model.Picture) PictureResponse {
	return PictureResponse{
		ID:        p.ID,
		Usage:     p.Usage,
		Extension: p.Extension,
		URL:       p.URL,
		Size:      p.Size,
		CreatedAt: p.CreatedAt,
	}
}

type pictureHandler struct {
	logger     *slog.Logger
	pictureSvc service.PictureService
}

func newPictureHandler(logger *slog.Logger, pictureSvc service.PictureService) *pictureHandler {
	return &pictureHandler{logger: logger, pictureSvc: pictureSvc}
}

func (h *pictureHandler) GetPicture(r *http.Request) (response, error) {
	id, err := uuidPathParam(r, "pictureId")
	if err != nil {
		return response{}, err
	}

	picture, err := h.pictureSvc.GetPicture(r.Context(), id)
	if err != nil {
		return response{}, fmt.Errorf("picture service get picture: %w", err)
	}

	return response{status: http.StatusOK, body: newPictureResponse(picture)}, nil
}

// GetPictureContent streams the stored bytes. Pictures never change once
// stored, so clients may cache them forever.
func (h *pictureHandler) GetPictureContent(w http.ResponseWriter, r *http.Request) error {
	id, err := uuidPathParam(r, "pictureId")
	if err != nil {
		return err
	}

	picture, rc, err := h.pictureSvc.OpenPicture(r.Context(), id)
	if err != nil {
		return fmt.Errorf("picture service open picture: %w", err)
	}
	defer rc.Close()

	w.Header().Set("Content-Type", picture.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(picture.Size, 10))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// headers are sent, nothing left to report to the client
		h.logger.WarnContext(r.Context(), "copy picture content", slog.Any("error", err))
	}
	return nil
}
