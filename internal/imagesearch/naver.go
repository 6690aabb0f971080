// Package imagesearch finds a representative image for a product name.
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/barguni/barguni-api/internal/config"
)

// ErrNoResult is returned when the search produced no usable image, either
// because nothing matched or because the provider failed.
var ErrNoResult = errors.New("imagesearch: no result")

// Candidate is a search hit.
type Candidate struct {
	URL       string
	Title     string
	Thumbnail string
}

type naverResponse struct {
	Total int `json:"total"`
	Items []struct {
		Title     string `json:"title"`
		Link      string `json:"link"`
		Thumbnail string `json:"thumbnail"`
	} `json:"items"`
}

// NaverClient calls the Naver image search API.
type NaverClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	timeout      time.Duration
	client       *http.Client
}

func NewNaverClient(cfg config.ImageSearch, client *http.Client) *NaverClient {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &NaverClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		timeout:      cfg.Timeout,
		client:       client,
	}
}

// Search returns the most similar image for query.
func (c *NaverClient) Search(ctx context.Context, query string) (Candidate, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", "1")
	params.Set("sort", "sim")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/search/image?"+params.Encode(), nil)
	if err != nil {
		return Candidate{}, fmt.Errorf("build request: %w: %w", ErrNoResult, err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Candidate{}, fmt.Errorf("do request: %w: %w", ErrNoResult, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Candidate{}, fmt.Errorf("status %d %q: %w", resp.StatusCode, strings.TrimSpace(string(body)), ErrNoResult)
	}

	var out naverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Candidate{}, fmt.Errorf("decode response: %w: %w", ErrNoResult, err)
	}

	for _, item := range out.Items {
		if item.Link == "" {
			continue
		}
		return Candidate{URL: item.Link, Title: item.Title, Thumbnail: item.Thumbnail}, nil
	}

	return Candidate{}, ErrNoResult
}
