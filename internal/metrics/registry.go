// Package metrics holds the weather metric families and serializes them in
// the Prometheus text exposition format.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the media type of WriteText output.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var (
	// ErrDuplicateFamily is wrapped by RegistrationError when a family ID or name is registered twice.
	ErrDuplicateFamily = errors.New("metric family already registered")
	// ErrUnknownFamily is returned by Set for a family that was never registered.
	ErrUnknownFamily = errors.New("unknown metric family")
)

// RegistrationError is returned when the family table cannot be registered.
// It always indicates a programming error.
type RegistrationError struct {
	Family string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register metric family %q: %v", e.Family, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Options configures a Registry.
type Options struct {
	// RuntimeCollectors adds the Go runtime and process collectors to the output.
	RuntimeCollectors bool
}

type registeredFamily struct {
	Family
	vec *prometheus.GaugeVec
}

// Registry is the process-wide set of weather series. It is safe for
// concurrent use; writes and serialization may overlap.
type Registry struct {
	reg     *prometheus.Registry
	runtime *prometheus.Registry

	mu       sync.RWMutex
	families map[FamilyID]*registeredFamily
	names    map[string]FamilyID

	failures       *prometheus.CounterVec
	scrapeDuration prometheus.Gauge
}

// New creates an empty Registry with the exporter's own metrics registered.
func New(opts Options) *Registry {
	r := &Registry{
		reg:      prometheus.NewRegistry(),
		families: make(map[FamilyID]*registeredFamily),
		names:    make(map[string]FamilyID),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openweathermap_exporter_fetch_failures_total",
			Help: "Locations skipped during a scrape, by failure reason",
		}, []string{"reason"}),
		scrapeDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "openweathermap_exporter_scrape_duration_seconds",
			Help: "Duration of the last upstream refresh in seconds",
		}),
	}
	r.reg.MustRegister(r.failures, r.scrapeDuration)

	if opts.RuntimeCollectors {
		r.runtime = prometheus.NewRegistry()
		r.runtime.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Register adds every family of the table in a single pass. Registering an
// ID or a name that is already known, either earlier in the same table or by
// a previous call, fails with a *RegistrationError.
func (r *Registry) Register(families []Family) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range families {
		if _, ok := r.families[f.ID]; ok {
			return &RegistrationError{Family: string(f.ID), Err: ErrDuplicateFamily}
		}
		if _, ok := r.names[f.Name]; ok {
			return &RegistrationError{Family: f.Name, Err: ErrDuplicateFamily}
		}

		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: f.Name,
			Help: f.Help,
		}, f.Labels)
		if err := r.reg.Register(vec); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				err = fmt.Errorf("%w: %v", ErrDuplicateFamily, err)
			}
			return &RegistrationError{Family: f.Name, Err: err}
		}

		r.families[f.ID] = &registeredFamily{Family: f, vec: vec}
		r.names[f.Name] = f.ID
	}
	return nil
}

// MustRegister is like Register but panics on failure.
func (r *Registry) MustRegister(families []Family) {
	if err := r.Register(families); err != nil {
		panic(err)
	}
}

// Set creates or updates the series of a family for one location.
// Integer families are rounded to the nearest whole number.
func (r *Registry) Set(id FamilyID, name, country string, value float64) error {
	r.mu.RLock()
	f, ok := r.families[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFamily, id)
	}

	if f.Kind == Integer {
		value = math.Round(value)
	}

	g, err := f.vec.GetMetricWithLabelValues(name, country)
	if err != nil {
		return fmt.Errorf("set %s: %w", f.Name, err)
	}
	g.Set(value)
	return nil
}

// Lookup returns the current value of a series and whether it exists.
func (r *Registry) Lookup(id FamilyID, name, country string) (float64, bool) {
	r.mu.RLock()
	f, ok := r.families[id]
	r.mu.RUnlock()
	if !ok {
		return 0, false
	}

	mfs, err := r.reg.Gather()
	if err != nil {
		return 0, false
	}
	for _, mf := range mfs {
		if mf.GetName() != f.Name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, name, country) {
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func matchLabels(m *dto.Metric, name, country string) bool {
	var gotName, gotCountry bool
	for _, lp := range m.GetLabel() {
		switch lp.GetName() {
		case LabelName:
			gotName = lp.GetValue() == name
		case LabelCountry:
			gotCountry = lp.GetValue() == country
		}
	}
	return gotName && gotCountry
}

// RecordFailure counts a location skipped during a scrape.
func (r *Registry) RecordFailure(reason string) {
	r.failures.WithLabelValues(reason).Inc()
}

// ObserveScrape records how long the last upstream refresh took.
func (r *Registry) ObserveScrape(d time.Duration) {
	r.scrapeDuration.Set(d.Seconds())
}

// Gatherer exposes everything WriteText serializes.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r.runtime == nil {
		return r.reg
	}
	return prometheus.Gatherers{r.reg, r.runtime}
}

// WriteText serializes all families that hold at least one series. A
// gathering error does not stop the families that were collected from being
// written; it is returned afterwards.
func (r *Registry) WriteText(w io.Writer) error {
	mfs, gatherErr := r.Gatherer().Gather()
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return gatherErr
}
