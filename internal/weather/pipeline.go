package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Failure reasons recorded for skipped locations.
const (
	ReasonTransport = "transport"
	ReasonDecode    = "decode"
)

// Result is the outcome of processing one location during a scrape.
type Result struct {
	Location    Location
	Observation Observation
	Samples     []Sample
	Err         error
	Duration    time.Duration
}

// OK reports whether the location was fetched and decoded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report collects one Result per configured location, in configured order.
type Report struct {
	Results  []Result
	Duration time.Duration
}

// Succeeded returns the number of locations whose metrics were updated.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the results of skipped locations.
func (r Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Pipeline fetches, decodes and normalizes the weather of every configured
// location and writes the values into a Sink.
type Pipeline struct {
	fetcher     Fetcher
	sink        Sink
	locations   []Location
	parallelism int
	logger      *slog.Logger
}

type PipelineOption func(*Pipeline)

// WithParallelism bounds how many locations are fetched at once. Values
// below 2 process locations one after another.
func WithParallelism(n int) PipelineOption {
	return func(p *Pipeline) {
		p.parallelism = n
	}
}

func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline creates a Pipeline over a fixed set of locations.
func NewPipeline(fetcher Fetcher, sink Sink, locations []Location, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		sink:        sink,
		locations:   append([]Location(nil), locations...),
		parallelism: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Locations returns the configured locations.
func (p *Pipeline) Locations() []Location {
	return append([]Location(nil), p.locations...)
}

// Run performs one best-effort pass over all locations. A failing location
// is logged and skipped; its series keep their last published values.
func (p *Pipeline) Run(ctx context.Context) Report {
	start := time.Now()
	results := make([]Result, len(p.locations))

	if p.parallelism < 2 || len(p.locations) < 2 {
		for i, loc := range p.locations {
			results[i] = p.process(ctx, loc)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.parallelism)
		for i, loc := range p.locations {
			i, loc := i, loc
			g.Go(func() error {
				results[i] = p.process(ctx, loc)
				return nil
			})
		}
		_ = g.Wait()
	}

	report := Report{Results: results, Duration: time.Since(start)}
	p.sink.ObserveScrape(report.Duration)

	p.logger.DebugContext(ctx, "weather refresh completed",
		"provider", p.fetcher.Name(),
		"locations", len(results),
		"succeeded", report.Succeeded(),
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report
}

func (p *Pipeline) process(ctx context.Context, loc Location) Result {
	start := time.Now()
	res := Result{Location: loc}

	body, err := p.fetcher.Fetch(ctx, loc)
	if err != nil {
		p.logger.ErrorContext(ctx, "fetch failed, skipping location",
			"provider", p.fetcher.Name(),
			"location", loc.Key(),
			"error", err,
		)
		p.sink.RecordFailure(ReasonTransport)
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	obs, err := Decode(body)
	if err != nil {
		var decErr *DecodeError
		path := ""
		if errors.As(err, &decErr) {
			path = decErr.Path
		}
		p.logger.ErrorContext(ctx, "decode failed, skipping location",
			"location", loc.Key(),
			"path", path,
			"error", err,
		)
		p.sink.RecordFailure(ReasonDecode)
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	res.Observation = obs
	res.Samples = Normalize(obs)
	for _, s := range res.Samples {
		if err := p.sink.Set(s.Family, obs.Name, obs.Country, s.Value); err != nil {
			p.logger.WarnContext(ctx, "metric not updated",
				"location", loc.Key(),
				"family", string(s.Family),
				"error", err,
			)
		}
	}

	res.Duration = time.Since(start)
	return res
}
