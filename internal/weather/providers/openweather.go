package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/openweathermap-exporter/internal/common"
	"github.com/i474232898/openweathermap-exporter/internal/weather"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

	maxBodySize = 1 << 20
)

// Options tunes an OpenWeatherProvider. Zero values select the defaults.
type Options struct {
	BaseURL string
	Units   string
	Timeout time.Duration
	Breaker BreakerSettings
	Logger  *slog.Logger
}

// OpenWeatherProvider fetches current-weather documents from OpenWeatherMap.
// It implements weather.Fetcher.
type OpenWeatherProvider struct {
	name     string
	apiKey   string
	baseURL  string
	units    string
	timeout  time.Duration
	client   *http.Client
	breakers *breakerSet
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts Options) *OpenWeatherProvider {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Units == "" {
		opts.Units = common.DefaultUnits
	}
	if opts.Timeout <= 0 {
		opts.Timeout = common.DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &OpenWeatherProvider{
		name:     "openweathermap",
		apiKey:   apiKey,
		baseURL:  opts.BaseURL,
		units:    opts.Units,
		timeout:  opts.Timeout,
		client:   client,
		breakers: newBreakerSet(opts.Breaker, opts.Logger),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// RequestURL returns the upstream URL queried for loc.
func (p *OpenWeatherProvider) RequestURL(loc weather.Location) string {
	values := url.Values{}
	values.Set("q", string(loc))
	values.Set("units", p.units)
	values.Set("appid", p.apiKey)

	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// Fetch returns the raw JSON body for loc. The request is bounded by the
// provider timeout. Any failure is a *TransportError.
func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.RequestURL(loc), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", common.UserAgent())
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Clacks-Overhead", "GNU Terry Pratchett")
		return req, nil
	}

	resp, status, err := doRequest(ctx, p.client, p.breakers.get(loc.Key()), buildRequest)
	if err != nil {
		return nil, &TransportError{Location: loc.Key(), StatusCode: status, Err: redact(err, p.apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Location: loc.Key(), StatusCode: status, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}
