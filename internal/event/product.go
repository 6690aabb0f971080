package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const TopicProductResolved = "product.resolved"

// ProductResolvedEvent is published once a barcode has been turned into a
// product.
type ProductResolvedEvent struct {
	ProductID  uuid.UUID `json:"product_id"`
	Barcode    string    `json:"barcode"`
	Name       string    `json:"name"`
	PictureID  uuid.UUID `json:"picture_id"`
	PictureURL string    `json:"picture_url"`
	ResolvedAt time.Time `json:"resolved_at"`
}

func (s *Service) handleProductResolvedEvent(ctx context.Context, ev ProductResolvedEvent) error {
	s.logger.InfoContext(ctx, "product resolved",
		slog.String("product_id", ev.ProductID.String()),
		slog.String("barcode", ev.Barcode),
		slog.String("name", ev.Name),
		slog.String("picture_url", ev.PictureURL),
	)
	return nil
}
