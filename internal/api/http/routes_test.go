package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/openweathermap-exporter/internal/config"
	"github.com/i474232898/openweathermap-exporter/internal/metrics"
	"github.com/i474232898/openweathermap-exporter/internal/weather"
	"github.com/i474232898/openweathermap-exporter/internal/weather/providers"
)

type countingScraper struct {
	runs atomic.Int32
}

func (s *countingScraper) Run(context.Context) weather.Report {
	s.runs.Add(1)
	return weather.Report{}
}

type exposerFunc func(w io.Writer) error

func (f exposerFunc) WriteText(w io.Writer) error { return f(w) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(scraper Scraper, exposer Exposer, path string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, scraper, RouteOptions{
		MetricsPath: path,
		Metrics:     exposer,
		Logger:      quietLogger(),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, target string) (int, http.Header, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, resp.Header, string(body)
}

func TestRootPage(t *testing.T) {
	app := newTestApp(&countingScraper{}, exposerFunc(func(io.Writer) error { return nil }), "")

	status, header, body := do(t, app, http.MethodGet, "/")
	if status != http.StatusOK {
		t.Fatalf("status=%d want=%d", status, http.StatusOK)
	}
	if !strings.HasPrefix(header.Get("Content-Type"), "text/html") {
		t.Fatalf("content-type=%q", header.Get("Content-Type"))
	}
	if !strings.Contains(body, `<a href="/metrics">Metrics</a>`) {
		t.Fatalf("root page does not link the metrics path: %q", body)
	}
}

func TestMetricsRunsScrape(t *testing.T) {
	scraper := &countingScraper{}
	exposer := exposerFunc(func(w io.Writer) error {
		_, err := io.WriteString(w, "openweathermap_temperature{country=\"DE\",name=\"Berlin\"} 15\n")
		return err
	})
	app := newTestApp(scraper, exposer, "")

	status, header, body := do(t, app, http.MethodGet, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("status=%d want=%d", status, http.StatusOK)
	}
	if got := header.Get("Content-Type"); got != metrics.ContentType {
		t.Fatalf("content-type=%q want=%q", got, metrics.ContentType)
	}
	if !strings.Contains(body, `name="Berlin"`) {
		t.Fatalf("unexpected body: %q", body)
	}
	if scraper.runs.Load() != 1 {
		t.Fatalf("scrapes=%d want=1", scraper.runs.Load())
	}
}

func TestMetricsEmptyReply(t *testing.T) {
	app := newTestApp(&countingScraper{}, exposerFunc(func(io.Writer) error { return nil }), "")

	status, _, body := do(t, app, http.MethodGet, "/metrics")
	if status != http.StatusOK || body != "\n" {
		t.Fatalf("status=%d body=%q, want 200 and a single newline", status, body)
	}
}

func TestMetricsEncodingFailureServesPartialOutput(t *testing.T) {
	const paris = "openweathermap_temperature{country=\"FR\",name=\"Paris\"} 18.2\n"
	exposer := exposerFunc(func(w io.Writer) error {
		if _, err := io.WriteString(w, paris); err != nil {
			return err
		}
		return errors.New("collector failed")
	})
	app := newTestApp(&countingScraper{}, exposer, "")

	status, header, body := do(t, app, http.MethodGet, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("status=%d want=%d", status, http.StatusOK)
	}
	if body != paris {
		t.Fatalf("body=%q want=%q", body, paris)
	}
	if got := header.Get("Content-Type"); got != metrics.ContentType {
		t.Fatalf("content-type=%q want=%q", got, metrics.ContentType)
	}
}

func TestMetricsEncodingFailureWithNothingWritten(t *testing.T) {
	app := newTestApp(&countingScraper{}, exposerFunc(func(io.Writer) error { return errors.New("boom") }), "")

	status, _, body := do(t, app, http.MethodGet, "/metrics")
	if status != http.StatusOK || body != "\n" {
		t.Fatalf("status=%d body=%q, want 200 and a single newline", status, body)
	}
}

func TestCustomMetricsPath(t *testing.T) {
	scraper := &countingScraper{}
	app := newTestApp(scraper, exposerFunc(func(io.Writer) error { return nil }), "/weather")

	if status, _, _ := do(t, app, http.MethodGet, "/weather"); status != http.StatusOK {
		t.Fatalf("status=%d want=%d", status, http.StatusOK)
	}
	if status, _, _ := do(t, app, http.MethodGet, "/metrics"); status != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", status, http.StatusNotFound)
	}
	if _, _, body := do(t, app, http.MethodGet, "/"); !strings.Contains(body, `href="/weather"`) {
		t.Fatalf("root page does not link the metrics path: %q", body)
	}
}

func TestMethodAndPathErrors(t *testing.T) {
	scraper := &countingScraper{}
	app := newTestApp(scraper, exposerFunc(func(io.Writer) error { return nil }), "")

	tests := []struct {
		method string
		target string
		status int
		body   string
	}{
		{http.MethodPost, "/metrics", http.StatusMethodNotAllowed, "Method not allowed"},
		{http.MethodPut, "/", http.StatusMethodNotAllowed, "Method not allowed"},
		{http.MethodDelete, "/nowhere", http.StatusMethodNotAllowed, "Method not allowed"},
		{http.MethodGet, "/nowhere", http.StatusNotFound, "Not found"},
		{http.MethodGet, "/metrics/extra", http.StatusNotFound, "Not found"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			status, header, body := do(t, app, tt.method, tt.target)
			if status != tt.status {
				t.Fatalf("status=%d want=%d", status, tt.status)
			}
			if body != tt.body {
				t.Fatalf("body=%q want=%q", body, tt.body)
			}
			if !strings.HasPrefix(header.Get("Content-Type"), "text/plain") {
				t.Fatalf("content-type=%q", header.Get("Content-Type"))
			}
		})
	}

	if scraper.runs.Load() != 0 {
		t.Fatalf("rejected requests must not scrape, got %d runs", scraper.runs.Load())
	}
}

func TestScrapeEndToEnd(t *testing.T) {
	var failBerlin atomic.Bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "Berlin":
			if failBerlin.Load() {
				http.Error(w, "upstream down", http.StatusInternalServerError)
				return
			}
			fmt.Fprint(w, `{"name":"Berlin","sys":{"country":"DE"},"main":{"temp":15.0,"pressure":1013,"humidity":57},"wind":{"speed":4.6,"deg":250,"gust":8.2},"clouds":{"all":75}}`)
		case "Paris":
			fmt.Fprint(w, `{"name":"Paris","sys":{"country":"FR"},"main":{"temp":18.2,"pressure":1009,"humidity":80},"wind":{"speed":3.1,"deg":270},"clouds":{"all":40}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	reg := metrics.New(metrics.Options{})
	reg.MustRegister(metrics.Families)

	fetcher := providers.NewOpenWeatherProvider(upstream.Client(), "key", providers.Options{
		BaseURL: upstream.URL,
		Logger:  quietLogger(),
	})
	pipeline := weather.NewPipeline(fetcher, reg, []weather.Location{"Berlin", "Paris"}, weather.WithLogger(quietLogger()))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, pipeline, RouteOptions{Metrics: reg, Logger: quietLogger()})

	status, _, body := do(t, app, http.MethodGet, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("status=%d want=%d", status, http.StatusOK)
	}
	for _, want := range []string{
		"# TYPE openweathermap_temperature gauge",
		`openweathermap_temperature{country="DE",name="Berlin"} 15`,
		`openweathermap_temperature{country="FR",name="Paris"} 18.2`,
		`openweathermap_pressure_pascal{country="FR",name="Paris"} 100900`,
		`openweathermap_humidity_ratio{country="DE",name="Berlin"} 0.57`,
		`openweathermap_wind_gust_speed{country="DE",name="Berlin"} 8.2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, `openweathermap_wind_gust_speed{country="FR"`) {
		t.Fatalf("gust exported for a location without gust:\n%s", body)
	}

	failBerlin.Store(true)
	status, _, body = do(t, app, http.MethodGet, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("status=%d want=%d after upstream failure", status, http.StatusOK)
	}
	if !strings.Contains(body, `openweathermap_temperature{country="DE",name="Berlin"} 15`) {
		t.Fatalf("failed location lost its last value:\n%s", body)
	}
	if !strings.Contains(body, `openweathermap_exporter_fetch_failures_total{reason="transport"} 1`) {
		t.Fatalf("transport failure not counted:\n%s", body)
	}
}

func TestScrapeRetriesRecoveredLocationWithDefaultConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("api_key: key\nlocations: [Berlin]\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate config: %v", err)
	}

	var calls atomic.Int32
	var healthy atomic.Bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"name":"Berlin","sys":{"country":"DE"},"main":{"temp":15.0,"pressure":1013,"humidity":57},"wind":{"speed":4.6,"deg":250},"clouds":{"all":75}}`)
	}))
	t.Cleanup(upstream.Close)

	reg := metrics.New(metrics.Options{})
	reg.MustRegister(metrics.Families)

	fetcher := providers.NewOpenWeatherProvider(upstream.Client(), cfg.APIKey, providers.Options{
		BaseURL: upstream.URL,
		Units:   cfg.UnitSystem(),
		Timeout: cfg.RequestTimeout(),
		Breaker: providers.BreakerSettings{
			Failures: cfg.BreakerFailures(),
			OpenFor:  cfg.BreakerOpenFor(),
		},
		Logger: quietLogger(),
	})
	locations := []weather.Location{weather.Location(cfg.Locations[0])}
	pipeline := weather.NewPipeline(fetcher, reg, locations, weather.WithLogger(quietLogger()))

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, pipeline, RouteOptions{MetricsPath: cfg.Path(), Metrics: reg, Logger: quietLogger()})

	for i := 0; i < 5; i++ {
		if status, _, _ := do(t, app, http.MethodGet, "/metrics"); status != http.StatusOK {
			t.Fatalf("scrape %d: status=%d want=%d", i+1, status, http.StatusOK)
		}
	}

	healthy.Store(true)
	_, _, body := do(t, app, http.MethodGet, "/metrics")

	if got := calls.Load(); got != 6 {
		t.Fatalf("upstream calls=%d want=6, one per scrape", got)
	}
	if !strings.Contains(body, `openweathermap_temperature{country="DE",name="Berlin"} 15`) {
		t.Fatalf("recovered location not published on the next scrape:\n%s", body)
	}
}
