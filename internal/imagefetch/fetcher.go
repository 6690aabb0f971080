// Package imagefetch downloads a remote image and validates it by decoding
// and re-encoding it in its declared format.
package imagefetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/barguni/barguni-api/internal/config"
)

var (
	// ErrFetchFailed is returned when the image could not be downloaded.
	ErrFetchFailed = errors.New("imagefetch: fetch failed")
	// ErrTooLarge is returned when the body exceeds the configured limit.
	ErrTooLarge = fmt.Errorf("%w: image too large", ErrFetchFailed)
	// ErrCorruptImage is returned when the body is not a decodable image.
	ErrCorruptImage = errors.New("imagefetch: corrupt image")
	// ErrUnsupportedFormat is returned when no encoder exists for the declared
	// format.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrCorruptImage)
	// ErrTooManyPixels is returned when the declared dimensions exceed the
	// configured pixel limit.
	ErrTooManyPixels = fmt.Errorf("%w: too many pixels", ErrCorruptImage)
)

// Image is a downloaded and normalized image.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Fetcher downloads images over http and https.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	maxPixels int64
}

func NewFetcher(cfg config.ImageFetch, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Fetcher{
		client:    client,
		timeout:   cfg.Timeout,
		maxBytes:  cfg.MaxBytes,
		maxPixels: cfg.MaxPixels,
	}
}

// Fetch downloads rawURL and returns the re-encoded image. Nothing is returned
// alongside an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Image{}, fmt.Errorf("parse url: %w: %w", ErrFetchFailed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Image{}, fmt.Errorf("scheme %q: %w", u.Scheme, ErrFetchFailed)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	data, header, err := f.download(ctx, u.String())
	if err != nil {
		return Image{}, err
	}

	contentType, err := detectContentType(header, data)
	if err != nil {
		return Image{}, err
	}

	ext := strings.TrimPrefix(contentType, "image/")
	normalized, err := f.reencode(data, ext)
	if err != nil {
		return Image{}, err
	}

	return Image{Data: normalized, ContentType: contentType, Extension: ext}, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("status %d: %w", resp.StatusCode, ErrFetchFailed)
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("content length %d: %w", resp.ContentLength, ErrTooLarge)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w: %w", ErrFetchFailed, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("body exceeds %d bytes: %w", f.maxBytes, ErrTooLarge)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// detectContentType prefers the declared media type and sniffs the bytes when
// the header is missing or not an image type.
func detectContentType(header string, data []byte) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mediaType, "image/") {
		return strings.ToLower(mediaType), nil
	}

	sniffed, _, err := mime.ParseMediaType(mimetype.Detect(data).String())
	if err != nil || !strings.HasPrefix(sniffed, "image/") {
		return "", fmt.Errorf("content type %q: %w", header, ErrCorruptImage)
	}

	return sniffed, nil
}

// reencode decodes data with any registered decoder and writes it back in the
// format named by ext. The header is checked against maxPixels before any
// pixel buffer is allocated.
func (f *Fetcher) reencode(data []byte, ext string) ([]byte, error) {
	enc, ok := encoders[ext]
	if !ok {
		return nil, fmt.Errorf("extension %q: %w", ext, ErrUnsupportedFormat)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w: %w", ErrCorruptImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); f.maxPixels > 0 && pixels > f.maxPixels {
		return nil, fmt.Errorf("%dx%d exceeds %d pixels: %w", cfg.Width, cfg.Height, f.maxPixels, ErrTooManyPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w: %w", ErrCorruptImage, err)
	}

	var buf bytes.Buffer
	if err := enc(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s: %w: %w", ext, ErrCorruptImage, err)
	}

	return buf.Bytes(), nil
}
