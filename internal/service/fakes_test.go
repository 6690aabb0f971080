package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/barguni/barguni-api/internal/asset"
	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/repository"
	"github.com/barguni/barguni-api/internal/storage/db"
)

type fakeDB struct{}

func (fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func (d fakeDB) WithTx(_ context.Context, fn func(db.DB) error) error { return fn(d) }

type fakeProductRepo struct {
	mu           sync.Mutex
	byBarcode    map[string]model.Product
	beforeCreate func(r *fakeProductRepo, p model.Product)
	reads        atomic.Int32
	existsChecks atomic.Int32
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{byBarcode: map[string]model.Product{}}
}

func (r *fakeProductRepo) WithDB(db.DB) repository.ProductRepository { return r }

func (r *fakeProductRepo) put(p model.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byBarcode[p.Barcode] = p
}

func (r *fakeProductRepo) CreateProduct(_ context.Context, p model.Product) error {
	if r.beforeCreate != nil {
		r.beforeCreate(r, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byBarcode[p.Barcode]; ok {
		return repository.ErrDuplicateBarcode
	}
	r.byBarcode[p.Barcode] = p
	return nil
}

func (r *fakeProductRepo) GetProductByID(_ context.Context, id uuid.UUID) (model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byBarcode {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Product{}, repository.ErrNotFound
}

func (r *fakeProductRepo) GetProductByBarcode(_ context.Context, barcode string) (model.Product, error) {
	r.reads.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byBarcode[barcode]
	if !ok {
		return model.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) ExistsByBarcode(_ context.Context, barcode string) (bool, error) {
	r.existsChecks.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byBarcode[barcode]
	return ok, nil
}

func (r *fakeProductRepo) ListAllProducts(context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Product, 0, len(r.byBarcode))
	for _, p := range r.byBarcode {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeProductRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byBarcode)
}

type fakeOutboxRepo struct {
	mu   sync.Mutex
	msgs []repository.CreateOutboxMsgParams
}

func (r *fakeOutboxRepo) WithDB(db.DB) repository.OutboxMsgRepository { return r }

func (r *fakeOutboxRepo) CreateOutboxMsg(_ context.Context, params repository.CreateOutboxMsgParams) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, params)
	return uuid.New(), nil
}

func (r *fakeOutboxRepo) ListUnprocessedOutboxMsgs(context.Context, int32) ([]repository.OutboxMsg, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) MarkOutboxMsgsProcessed(context.Context, []repository.OutboxMsgResult) error {
	return nil
}

func (r *fakeOutboxRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type fakeAssetStore struct {
	mu      sync.Mutex
	uploads []asset.Upload
}

func (s *fakeAssetStore) Store(_ context.Context, up asset.Upload) (model.Picture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, up)

	id := uuid.New()
	return model.Picture{
		ID:         id,
		Usage:      up.Usage,
		Extension:  up.Extension,
		StorageKey: "item/" + id.String() + "." + up.Extension,
		URL:        "/api/v1/pictures/" + id.String() + "/content",
		Size:       int64(len(up.Data)),
	}, nil
}

func (s *fakeAssetStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// fakeProvider answers name lookups. When block is set, calls wait for ctx to
// end until release is closed.
type fakeProvider struct {
	name    string
	answer  string
	err     error
	calls   atomic.Int32
	started chan struct{}
	once    sync.Once
	block   func(call int32) bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) LookupName(ctx context.Context, _ string) (string, error) {
	call := p.calls.Add(1)
	if p.started != nil {
		p.once.Do(func() { close(p.started) })
	}
	if p.block != nil && p.block(call) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.answer, p.err
}

// imageServer fakes both the image search API and the image host.
type imageServer struct {
	*httptest.Server
	searches atomic.Int32
	fetches  atomic.Int32

	noResults   bool
	onFetch     func()
	imageStatus int
	imageType   string
	imageBody   []byte
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	s := &imageServer{imageStatus: http.StatusOK, imageType: "image/png", imageBody: buf.Bytes()}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search/image", func(w http.ResponseWriter, _ *http.Request) {
		s.searches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if s.noResults {
			_, _ = w.Write([]byte(`{"total":0,"items":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"total":1,"items":[{"title":"x","link":"` + s.URL + `/img","thumbnail":""}]}`))
	})
	mux.HandleFunc("/img", func(w http.ResponseWriter, _ *http.Request) {
		s.fetches.Add(1)
		if s.onFetch != nil {
			s.onFetch()
		}
		if s.imageStatus != http.StatusOK {
			w.WriteHeader(s.imageStatus)
			return
		}
		w.Header().Set("Content-Type", s.imageType)
		_, _ = w.Write(s.imageBody)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}
