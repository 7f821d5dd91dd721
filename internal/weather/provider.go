package weather

import (
	"context"
	"time"

	"github.com/i474232898/openweathermap-exporter/internal/metrics"
)

// Fetcher abstracts the upstream weather API (OpenWeatherMap).
// Fetch returns the raw response body of a successful request.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, loc Location) ([]byte, error)
}

// Sink is the contract the metric registry satisfies for the pipeline.
type Sink interface {
	Set(id metrics.FamilyID, name, country string, value float64) error
	RecordFailure(reason string)
	ObserveScrape(d time.Duration)
}
