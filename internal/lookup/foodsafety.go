package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/barguni/barguni-api/internal/config"
)

const (
	ServiceC005  = "C005"
	ServiceI2570 = "I2570"

	resultOK     = "INFO-000"
	resultNoData = "INFO-200"

	maxResponseBytes = 1 << 20
)

// foodSafetyServices maps a service id of the food safety open API to its
// barcode query parameter and product name field.
var foodSafetyServices = map[string]struct {
	barcodeParam string
	nameField    string
}{
	ServiceC005:  {barcodeParam: "BAR_CD", nameField: "PRDLST_NM"},
	ServiceI2570: {barcodeParam: "BRCD_NO", nameField: "PRDT_NM"},
}

// FoodSafetyProvider queries one service of the food safety Korea open API.
type FoodSafetyProvider struct {
	service      string
	barcodeParam string
	nameField    string
	baseURL      string
	apiKey       string
	client       *http.Client
}

// NewFoodSafetyProvider returns a provider for service, which must be C005 or
// I2570. A nil client gets a traced default.
func NewFoodSafetyProvider(service string, cfg config.Lookup, client *http.Client) (*FoodSafetyProvider, error) {
	svc, ok := foodSafetyServices[service]
	if !ok {
		return nil, fmt.Errorf("unknown food safety service %q", service)
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &FoodSafetyProvider{
		service:      service,
		barcodeParam: svc.barcodeParam,
		nameField:    svc.nameField,
		baseURL:      strings.TrimRight(cfg.FoodSafetyBaseURL, "/"),
		apiKey:       cfg.FoodSafetyAPIKey,
		client:       client,
	}, nil
}

// NewProviders builds the providers listed in cfg.Providers, in order.
func NewProviders(cfg config.Lookup, client *http.Client) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, service := range cfg.Providers {
		p, err := NewFoodSafetyProvider(strings.ToUpper(strings.TrimSpace(service)), cfg, client)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func (p *FoodSafetyProvider) Name() string {
	return p.service
}

func (p *FoodSafetyProvider) LookupName(ctx context.Context, barcode string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/json/1/5/%s=%s",
		p.baseURL, url.PathEscape(p.apiKey), p.service, p.barcodeParam, url.PathEscape(barcode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", p.service, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: do request: %w", p.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s: status %d: %w", p.service, resp.StatusCode, ErrProviderUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", p.service, err)
	}

	return p.parse(body)
}

// parse extracts the first row's name. The API reports errors either under
// the service key or at the top level.
func (p *FoodSafetyProvider) parse(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%s: malformed response body", p.service)
	}

	result := gjson.GetBytes(body, p.service+".RESULT")
	if !result.Exists() {
		result = gjson.GetBytes(body, "RESULT")
	}

	switch code := result.Get("CODE").String(); code {
	case resultOK:
	case resultNoData:
		return "", nil
	default:
		return "", fmt.Errorf("%s: result %q: %s", p.service, code, result.Get("MSG").String())
	}

	return gjson.GetBytes(body, p.service+".row.0."+p.nameField).String(), nil
}
