package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/barguni/barguni-api/internal/apperr"
	"github.com/barguni/barguni-api/internal/asset"
	"github.com/barguni/barguni-api/internal/config"
	"github.com/barguni/barguni-api/internal/event"
	"github.com/barguni/barguni-api/internal/imagefetch"
	"github.com/barguni/barguni-api/internal/imagesearch"
	"github.com/barguni/barguni-api/internal/lookup"
	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/repository"
	"github.com/barguni/barguni-api/internal/storage/db"
	"github.com/barguni/barguni-api/pkg/outbox"
	"github.com/barguni/barguni-api/pkg/ptr"
	"github.com/barguni/barguni-api/pkg/zerror"
)

var tracer = otel.Tracer("internal/service")

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "product_resolutions_total",
	Help: "Barcode resolutions by outcome.",
}, []string{"outcome"})

type NameResolver interface {
	ResolveName(ctx context.Context, barcode string) (string, error)
}

type ImageSearcher interface {
	Search(ctx context.Context, query string) (imagesearch.Candidate, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (imagefetch.Image, error)
}

type AssetStore interface {
	Store(ctx context.Context, up asset.Upload) (model.Picture, error)
}

// ResolveResult is the product for a barcode. Created is false when the
// product already existed.
type ResolveResult struct {
	Product model.Product
	Created bool
}

type ProductService interface {
	// ResolveProduct returns the product for barcode, creating it from the
	// external lookup, image search and image fetch when it does not exist.
	ResolveProduct(ctx context.Context, barcode string) (ResolveResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
}

type productService struct {
	cfg           config.Pipeline
	logger        *slog.Logger
	db            db.DB
	productRepo   repository.ProductRepository
	outboxMsgRepo repository.OutboxMsgRepository
	names         NameResolver
	images        ImageSearcher
	fetcher       ImageFetcher
	assets        AssetStore

	inflight singleflight.Group
}

func NewProductService(
	cfg config.Pipeline,
	logger *slog.Logger,
	db db.DB,
	productRepo repository.ProductRepository,
	outboxMsgRepo repository.OutboxMsgRepository,
	names NameResolver,
	images ImageSearcher,
	fetcher ImageFetcher,
	assets AssetStore,
) ProductService {
	return &productService{
		cfg:           cfg,
		logger:        logger.With(slog.String("service", "product")),
		db:            db,
		productRepo:   productRepo,
		outboxMsgRepo: outboxMsgRepo,
		names:         names,
		images:        images,
		fetcher:       fetcher,
		assets:        assets,
	}
}

// flightResult carries a shared resolution. callerDone marks a failure caused
// by the leading caller's context, which other waiters must not inherit.
type flightResult struct {
	res        ResolveResult
	callerDone bool
}

func (s *productService) ResolveProduct(ctx context.Context, barcode string) (ResolveResult, error) {
	ctx, span := tracer.Start(ctx, "ProductService.ResolveProduct",
		trace.WithAttributes(attribute.String("barcode", barcode)),
	)
	defer span.End()

	res, err := s.resolveProduct(ctx, barcode)

	resolutions.WithLabelValues(outcome(res, err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve product failed")
		return ResolveResult{}, err
	}

	span.SetAttributes(
		attribute.String("product_id", res.Product.ID.String()),
		attribute.Bool("created", res.Created),
	)
	return res, nil
}

func (s *productService) resolveProduct(ctx context.Context, barcode string) (ResolveResult, error) {
	existing, err := s.productRepo.GetProductByBarcode(ctx, barcode)
	switch {
	case err == nil:
		return ResolveResult{Product: existing}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return ResolveResult{}, s.stageErr(ctx, fmt.Errorf("product repository get product by barcode: %w", err))
	}

	for {
		var leader bool
		ch := s.inflight.DoChan(barcode, func() (any, error) {
			leader = true
			res, err := s.run(ctx, barcode)
			return flightResult{res: res, callerDone: err != nil && ctx.Err() != nil}, err
		})

		select {
		case <-ctx.Done():
			return ResolveResult{}, apperr.ResolveTimeoutErr.WrapParent(ctx.Err())
		case r := <-ch:
			fr, _ := r.Val.(flightResult)
			if r.Err != nil && fr.callerDone && ctx.Err() == nil {
				s.logger.DebugContext(ctx, "shared resolution was cancelled, retrying", slog.String("barcode", barcode))
				continue
			}
			if r.Err != nil {
				return ResolveResult{}, r.Err
			}
			// Waiters that joined another caller's flight did not create the
			// product themselves.
			fr.res.Created = fr.res.Created && leader
			return fr.res, nil
		}
	}
}

// run executes the pipeline stages after the existence check.
func (s *productService) run(ctx context.Context, barcode string) (ResolveResult, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	// A concurrent flight may have finished between the first check and this
	// one.
	if existing, err := s.productRepo.GetProductByBarcode(ctx, barcode); err == nil {
		return ResolveResult{Product: existing}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return ResolveResult{}, s.stageErr(ctx, fmt.Errorf("product repository get product by barcode: %w", err))
	}

	name, err := s.resolveName(ctx, barcode)
	if err != nil {
		return ResolveResult{}, err
	}

	img, err := s.findImage(ctx, name)
	if err != nil {
		return ResolveResult{}, err
	}

	// Another process may have created the product while the external calls
	// ran. Checking here keeps its picture from being stored as an orphan.
	exists, err := s.productRepo.ExistsByBarcode(ctx, barcode)
	if err != nil {
		return ResolveResult{}, s.stageErr(ctx, fmt.Errorf("product repository exists by barcode: %w", err))
	}
	if exists {
		return s.existing(ctx, barcode)
	}

	picture, err := s.storeImage(ctx, name, img)
	if err != nil {
		return ResolveResult{}, err
	}

	return s.persist(ctx, barcode, name, picture)
}

func (s *productService) existing(ctx context.Context, barcode string) (ResolveResult, error) {
	product, err := s.productRepo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return ResolveResult{}, s.stageErr(ctx, fmt.Errorf("product repository get product by barcode: %w", err))
	}
	return ResolveResult{Product: product}, nil
}

func (s *productService) resolveName(ctx context.Context, barcode string) (string, error) {
	ctx, span := tracer.Start(ctx, "ProductService.resolveName")
	defer span.End()

	name, err := s.names.ResolveName(ctx, barcode)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, lookup.ErrNameNotFound) && ctx.Err() == nil {
			return "", apperr.ProductCodeNotFoundErr.WrapParent(err)
		}
		return "", s.stageErr(ctx, fmt.Errorf("resolve name: %w", err))
	}

	return name, nil
}

func (s *productService) findImage(ctx context.Context, name string) (imagefetch.Image, error) {
	ctx, span := tracer.Start(ctx, "ProductService.findImage")
	defer span.End()

	candidate, err := s.images.Search(ctx, name)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return imagefetch.Image{}, s.stageErr(ctx, err)
		}
		if errors.Is(err, imagesearch.ErrNoResult) {
			return imagefetch.Image{}, apperr.ImageNotFoundErr.WrapParent(err)
		}
		return imagefetch.Image{}, fmt.Errorf("search image: %w", err)
	}
	span.SetAttributes(attribute.String("image_url", candidate.URL))

	img, err := s.fetcher.Fetch(ctx, candidate.URL)
	if err != nil {
		span.RecordError(err)
		switch {
		case ctx.Err() != nil:
			return imagefetch.Image{}, s.stageErr(ctx, err)
		case errors.Is(err, imagefetch.ErrCorruptImage):
			return imagefetch.Image{}, apperr.CorruptImageErr.WrapParent(err)
		default:
			return imagefetch.Image{}, apperr.ImageFetchFailedErr.WrapParent(err)
		}
	}

	return img, nil
}

func (s *productService) storeImage(ctx context.Context, name string, img imagefetch.Image) (model.Picture, error) {
	ctx, span := tracer.Start(ctx, "ProductService.storeImage")
	defer span.End()

	picture, err := s.assets.Store(ctx, asset.Upload{
		Name:      name,
		Usage:     model.PictureUsageItem,
		Extension: img.Extension,
		Data:      img.Data,
	})
	if err != nil {
		span.RecordError(err)
		return model.Picture{}, s.stageErr(ctx, fmt.Errorf("store asset: %w", err))
	}

	return picture, nil
}

// persist writes the product and its resolved event in one transaction. A
// product created concurrently by another process wins.
func (s *productService) persist(ctx context.Context, barcode, name string, picture model.Picture) (ResolveResult, error) {
	ctx, span := tracer.Start(ctx, "ProductService.persist")
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return ResolveResult{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	product := model.Product{
		ID:        id,
		Barcode:   barcode,
		Name:      name,
		Picture:   picture,
		CreatedAt: time.Now(),
	}

	payload, err := json.Marshal(event.ProductResolvedEvent{
		ProductID:  product.ID,
		Barcode:    product.Barcode,
		Name:       product.Name,
		PictureID:  picture.ID,
		PictureURL: picture.URL,
		ResolvedAt: product.CreatedAt,
	})
	if err != nil {
		return ResolveResult{}, fmt.Errorf("marshal event: %w", err)
	}

	err = s.db.WithTx(ctx, func(tx db.DB) error {
		if err := s.productRepo.WithDB(tx).CreateProduct(ctx, product); err != nil {
			return fmt.Errorf("product repository create product: %w", err)
		}

		if _, err := s.outboxMsgRepo.WithDB(tx).CreateOutboxMsg(ctx, repository.CreateOutboxMsgParams{
			Topic:        event.TopicProductResolved,
			Headers:      outbox.BuildHeaders(ctx),
			Payload:      payload,
			PartitionKey: ptr.New(barcode),
		}); err != nil {
			return fmt.Errorf("outbox msg repository create outbox msg: %w", err)
		}

		return nil
	})
	if errors.Is(err, repository.ErrDuplicateBarcode) {
		s.logger.InfoContext(ctx, "product created concurrently, using existing",
			slog.String("barcode", barcode),
			slog.String("orphan_picture_id", picture.ID.String()),
		)
		return s.existing(ctx, barcode)
	}
	if err != nil {
		span.RecordError(err)
		return ResolveResult{}, s.stageErr(ctx, fmt.Errorf("db with tx: %w", err))
	}

	s.logger.InfoContext(ctx, "product resolved",
		slog.String("product_id", product.ID.String()),
		slog.String("barcode", barcode),
		slog.String("name", name),
		slog.String("picture_id", picture.ID.String()),
	)

	return ResolveResult{Product: product, Created: true}, nil
}

// stageErr turns a failure caused by an expired or cancelled context into
// ResolveTimeoutErr and passes anything else through.
func (s *productService) stageErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperr.ResolveTimeoutErr.WrapParent(err)
	}
	return err
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Product{}, apperr.ProductNotFoundErr
		}
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}

	return product, nil
}

func (s *productService) GetProductByBarcode(ctx context.Context, barcode string) (model.Product, error) {
	product, err := s.productRepo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Product{}, apperr.ProductNotFoundErr
		}
		return model.Product{}, fmt.Errorf("product repository get product by barcode: %w", err)
	}

	return product, nil
}

func (s *productService) ListProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.productRepo.ListAllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("product repository list all products: %w", err)
	}

	return products, nil
}

func outcome(res ResolveResult, err error) string {
	if err == nil {
		if res.Created {
			return "created"
		}
		return "existing"
	}

	var zerr zerror.ZError
	if errors.As(err, &zerr) {
		return zerr.Code()
	}
	return "error"
}
