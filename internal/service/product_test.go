package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barguni/barguni-api/internal/apperr"
	"github.com/barguni/barguni-api/internal/config"
	"github.com/barguni/barguni-api/internal/event"
	"github.com/barguni/barguni-api/internal/imagefetch"
	"github.com/barguni/barguni-api/internal/imagesearch"
	"github.com/barguni/barguni-api/internal/lookup"
	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/service"
)

const barcode = "8801234567890"

type harness struct {
	svc      service.ProductService
	products *fakeProductRepo
	outbox   *fakeOutboxRepo
	assets   *fakeAssetStore
	images   *imageServer
	c005     *fakeProvider
	i2570    *fakeProvider
}

func newHarness(t *testing.T, c005, i2570 *fakeProvider) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		products: newFakeProductRepo(),
		outbox:   &fakeOutboxRepo{},
		assets:   &fakeAssetStore{},
		images:   newImageServer(t),
		c005:     c005,
		i2570:    i2570,
	}

	resolver := lookup.NewResolver(logger, time.Second, c005, i2570)
	search := imagesearch.NewNaverClient(config.ImageSearch{
		BaseURL:      h.images.URL,
		ClientID:     "id",
		ClientSecret: "secret",
		Timeout:      time.Second,
	}, h.images.Client())
	fetcher := imagefetch.NewFetcher(config.ImageFetch{Timeout: time.Second, MaxBytes: 1 << 20}, h.images.Client())

	h.svc = service.NewProductService(
		config.Pipeline{Timeout: 5 * time.Second},
		logger,
		fakeDB{},
		h.products,
		h.outbox,
		resolver,
		search,
		fetcher,
		h.assets,
	)
	return h
}

func (h *harness) externalCalls() int32 {
	return h.c005.calls.Load() + h.i2570.calls.Load() + h.images.searches.Load() + h.images.fetches.Load()
}

func TestResolveProductExampleScenario(t *testing.T) {
	h := newHarness(t,
		&fakeProvider{name: "C005", answer: "생수 500ml"},
		&fakeProvider{name: "I2570"},
	)

	res, err := h.svc.ResolveProduct(context.Background(), barcode)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, barcode, res.Product.Barcode)
	assert.Equal(t, "생수 500ml", res.Product.Name)
	assert.Equal(t, "png", res.Product.Picture.Extension)
	assert.Equal(t, model.PictureUsageItem, res.Product.Picture.Usage)
	assert.NotEqual(t, uuid.Nil, res.Product.ID)

	assert.Equal(t, int32(1), h.c005.calls.Load())
	assert.Equal(t, int32(0), h.i2570.calls.Load())

	require.Equal(t, 1, h.assets.count())
	assert.Equal(t, "png", h.assets.uploads[0].Extension)
	assert.Equal(t, "생수 500ml", h.assets.uploads[0].Name)

	require.Equal(t, 1, h.outbox.count())
	msg := h.outbox.msgs[0]
	assert.Equal(t, event.TopicProductResolved, msg.Topic)
	require.NotNil(t, msg.PartitionKey)
	assert.Equal(t, barcode, *msg.PartitionKey)

	var ev event.ProductResolvedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &ev))
	assert.Equal(t, res.Product.ID, ev.ProductID)
	assert.Equal(t, res.Product.Picture.ID, ev.PictureID)
}

func TestResolveProductIsIdempotent(t *testing.T) {
	h := newHarness(t,
		&fakeProvider{name: "C005", answer: "생수 500ml"},
		&fakeProvider{name: "I2570"},
	)

	first, err := h.svc.ResolveProduct(context.Background(), barcode)
	require.NoError(t, err)
	callsAfterFirst := h.externalCalls()

	second, err := h.svc.ResolveProduct(context.Background(), barcode)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Product.ID, second.Product.ID)
	assert.Equal(t, callsAfterFirst, h.externalCalls())
	assert.Equal(t, 1, h.products.count())
	assert.Equal(t, 1, h.assets.count())
}

func TestResolveProductFallsBackToSecondProvider(t *testing.T) {
	tests := []struct {
		name  string
		c005  *fakeProvider
		i2570 *fakeProvider
	}{
		{
			name:  "first empty",
			c005:  &fakeProvider{name: "C005"},
			i2570: &fakeProvider{name: "I2570", answer: "Y"},
		},
		{
			name:  "first failing",
			c005:  &fakeProvider{name: "C005", err: lookup.ErrProviderUnavailable},
			i2570: &fakeProvider{name: "I2570", answer: "Y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.c005, tt.i2570)

			res, err := h.svc.ResolveProduct(context.Background(), barcode)
			require.NoError(t, err)
			assert.Equal(t, "Y", res.Product.Name)
			assert.Equal(t, int32(1), tt.c005.calls.Load())
			assert.Equal(t, int32(1), tt.i2570.calls.Load())
		})
	}
}

func TestResolveProductFailures(t *testing.T) {
	tests := []struct {
		name      string
		c005      *fakeProvider
		setup     func(h *harness)
		wantErr   error
		wantFetch bool
	}{
		{
			name:    "no provider knows the barcode",
			c005:    &fakeProvider{name: "C005", err: errors.New("boom")},
			wantErr: apperr.ProductCodeNotFoundErr,
		},
		{
			name:    "no image found",
			c005:    &fakeProvider{name: "C005", answer: "생수 500ml"},
			setup:   func(h *harness) { h.images.noResults = true },
			wantErr: apperr.ImageNotFoundErr,
		},
		{
			name:      "image host returns 404",
			c005:      &fakeProvider{name: "C005", answer: "생수 500ml"},
			setup:     func(h *harness) { h.images.imageStatus = http.StatusNotFound },
			wantErr:   apperr.ImageFetchFailedErr,
			wantFetch: true,
		},
		{
			name: "image bytes are corrupt",
			c005: &fakeProvider{name: "C005", answer: "생수 500ml"},
			setup: func(h *harness) {
				h.images.imageBody = []byte("not an image")
			},
			wantErr:   apperr.CorruptImageErr,
			wantFetch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.c005, &fakeProvider{name: "I2570"})
			if tt.setup != nil {
				tt.setup(h)
			}

			_, err := h.svc.ResolveProduct(context.Background(), barcode)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Zero(t, h.products.count())
			assert.Zero(t, h.assets.count())
			assert.Zero(t, h.outbox.count())
			if tt.wantFetch {
				assert.Equal(t, int32(1), h.images.fetches.Load())
			}
		})
	}
}

func TestResolveProductNameNotFoundSkipsImageSearch(t *testing.T) {
	h := newHarness(t, &fakeProvider{name: "C005"}, &fakeProvider{name: "I2570"})

	_, err := h.svc.ResolveProduct(context.Background(), barcode)
	require.ErrorIs(t, err, apperr.ProductCodeNotFoundErr)
	assert.Equal(t, int32(0), h.images.searches.Load())
}

func TestResolveProductConcurrentCallersShareOneProduct(t *testing.T) {
	release := make(chan struct{})
	c005 := &fakeProvider{name: "C005", answer: "생수 500ml", started: make(chan struct{})}
	h := newHarness(t, c005, &fakeProvider{name: "I2570"})
	c005.block = func(int32) bool {
		<-release
		return false
	}

	const n = 10
	results := make([]service.ResolveResult, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			results[i], errs[i] = h.svc.ResolveProduct(context.Background(), barcode)
		})
	}

	<-c005.started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	created := 0
	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Product.ID, results[i].Product.ID)
		if results[i].Created {
			created++
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, h.products.count())
	assert.Equal(t, 1, h.assets.count())
	assert.Equal(t, int32(1), c005.calls.Load())
}

func TestResolveProductDuplicateFromAnotherProcess(t *testing.T) {
	h := newHarness(t, &fakeProvider{name: "C005", answer: "생수 500ml"}, &fakeProvider{name: "I2570"})

	winner := model.Product{ID: uuid.New(), Barcode: barcode, Name: "winner"}
	h.products.beforeCreate = func(r *fakeProductRepo, _ model.Product) {
		r.put(winner)
	}

	res, err := h.svc.ResolveProduct(context.Background(), barcode)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner.ID, res.Product.ID)
	assert.Zero(t, h.outbox.count())
}

func TestResolveProductCreatedElsewhereDuringFetchStoresNoPicture(t *testing.T) {
	h := newHarness(t, &fakeProvider{name: "C005", answer: "생수 500ml"}, &fakeProvider{name: "I2570"})

	winner := model.Product{ID: uuid.New(), Barcode: barcode, Name: "winner"}
	h.images.onFetch = func() { h.products.put(winner) }

	res, err := h.svc.ResolveProduct(context.Background(), barcode)
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, winner.ID, res.Product.ID)
	assert.Equal(t, int32(1), h.products.existsChecks.Load())
	assert.Zero(t, h.assets.count())
	assert.Zero(t, h.outbox.count())
}

func TestResolveProductCallerDeadline(t *testing.T) {
	c005 := &fakeProvider{name: "C005", answer: "late", block: func(int32) bool { return true }}
	h := newHarness(t, c005, &fakeProvider{name: "I2570", answer: "Y"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := h.svc.ResolveProduct(ctx, barcode)
	require.ErrorIs(t, err, apperr.ResolveTimeoutErr)
	assert.Zero(t, h.products.count())
}

func TestResolveProductFollowerSurvivesCancelledLeader(t *testing.T) {
	c005 := &fakeProvider{
		name:    "C005",
		answer:  "생수 500ml",
		started: make(chan struct{}),
		block:   func(call int32) bool { return call == 1 },
	}
	h := newHarness(t, c005, &fakeProvider{name: "I2570"})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := h.svc.ResolveProduct(leaderCtx, barcode)
		leaderErr <- err
	}()
	<-c005.started

	followerRes := make(chan service.ResolveResult, 1)
	followerErr := make(chan error, 1)
	go func() {
		res, err := h.svc.ResolveProduct(context.Background(), barcode)
		followerRes <- res
		followerErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelLeader()

	require.ErrorIs(t, <-leaderErr, apperr.ResolveTimeoutErr)
	res := <-followerRes
	require.NoError(t, <-followerErr)
	assert.Equal(t, "생수 500ml", res.Product.Name)
	assert.Equal(t, 1, h.products.count())
}

func TestProductReads(t *testing.T) {
	h := newHarness(t, &fakeProvider{name: "C005", answer: "생수 500ml"}, &fakeProvider{name: "I2570"})
	ctx := context.Background()

	_, err := h.svc.GetProductByBarcode(ctx, barcode)
	require.ErrorIs(t, err, apperr.ProductNotFoundErr)

	res, err := h.svc.ResolveProduct(ctx, barcode)
	require.NoError(t, err)

	got, err := h.svc.GetProduct(ctx, res.Product.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Product.ID, got.ID)

	got, err = h.svc.GetProductByBarcode(ctx, barcode)
	require.NoError(t, err)
	assert.Equal(t, res.Product.ID, got.ID)

	_, err = h.svc.GetProduct(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ProductNotFoundErr)

	list, err := h.svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
