package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrUnexpectedStatus is wrapped by TransportError when upstream answers with anything but 200.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrCircuitOpen is wrapped by TransportError when a location's breaker rejects the request.
	ErrCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// TransportError reports a failed upstream request for one location.
// StatusCode is zero when no response was received.
type TransportError struct {
	Location   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %q: HTTP status %d: %v", e.Location, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %q: %v", e.Location, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// BreakerSettings controls the per-location circuit breaker.
// A zero Failures disables it.
type BreakerSettings struct {
	Failures uint32
	OpenFor  time.Duration
}

// breakerSet lazily creates one circuit breaker per location so a single
// unreachable location never short-circuits the others.
type breakerSet struct {
	settings BreakerSettings
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet(settings BreakerSettings, logger *slog.Logger) *breakerSet {
	return &breakerSet{
		settings: settings,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *breakerSet) get(key string) *gobreaker.CircuitBreaker {
	if b == nil || b.settings.Failures == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.breakers[key]
	if !ok {
		failures := b.settings.Failures
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        key,
			MaxRequests: 1,
			Timeout:     b.settings.OpenFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				b.logger.Warn("circuit breaker state changed",
					"location", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
		b.breakers[key] = cb
	}
	return cb
}

// doRequest executes one request, guarded by cb when it is non-nil. Only a
// 200 response is returned; the caller closes its body. There are no retries:
// the next scrape is the retry boundary.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, int, error) {
	if client == nil {
		return nil, 0, errNoHTTPClient
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, 0, err
	}

	var status int
	do := func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		status = resp.StatusCode
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
		}
		return resp, nil
	}

	if cb == nil {
		result, err := do()
		if err != nil {
			return nil, status, err
		}
		return result.(*http.Response), status, nil
	}

	result, err := cb.Execute(do)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, 0, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, status, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, status, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, status, nil
}
