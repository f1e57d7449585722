package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/clinlab/amrclassify/internal/domain"
)

// HTTPOracle is an Oracle backed by an HTTP terminology service,
// protected by a circuit breaker and a rate limiter, the way the
// teacher's pkg/external clients wrap ClinVar/gnomAD/HGNC calls
// (circuit_breaker.go, hgnc_client.go). A per-call timeout (spec §5
// "independent per-call timeouts") degrades to a failed call rather
// than blocking the caller indefinitely.
type HTTPOracle struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	timeout    time.Duration
}

// NewHTTPOracle builds an HTTPOracle from engine configuration.
func NewHTTPOracle(cfg domain.OracleConfig) *HTTPOracle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rps := cfg.RateLimitPerSecond
	if rps <= 0 {
		rps = 20
	}

	maxRequests := cfg.CircuitBreaker.MaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	interval := cfg.CircuitBreaker.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	cbTimeout := cfg.CircuitBreaker.Timeout
	if cbTimeout <= 0 {
		cbTimeout = 5 * time.Second
	}
	failureThreshold := cfg.CircuitBreaker.FailureThreshold
	if failureThreshold == 0 {
		failureThreshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "terminology-oracle",
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     cbTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= failureThreshold && counts.TotalFailures >= failureThreshold
		},
	})

	return &HTTPOracle{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		breaker:    breaker,
		timeout:    timeout,
	}
}

type validateCodeResponse struct {
	CanonicalKey string `json:"canonical_key"`
	Display      string `json:"display"`
	Valid        bool   `json:"valid"`
}

// ValidateCode implements Oracle. The circuit breaker sits outside the
// rate limiter: a tripped breaker fails fast without consuming a rate
// limit token.
func (o *HTTPOracle) ValidateCode(ctx context.Context, system CodeSystem, code, display string) (string, string, bool, error) {
	result, err := o.breaker.Execute(func() (interface{}, error) {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return o.doValidate(ctx, system, code, display)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return "", "", false, fmt.Errorf("terminology oracle unavailable (circuit breaker open)")
		}
		return "", "", false, err
	}
	resp := result.(*validateCodeResponse)
	return resp.CanonicalKey, resp.Display, resp.Valid, nil
}

func (o *HTTPOracle) doValidate(ctx context.Context, system CodeSystem, code, display string) (*validateCodeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("system", string(system))
	q.Set("code", code)
	q.Set("display", display)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/validate-code?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building oracle request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var out validateCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding oracle response: %w", err)
	}
	return &out, nil
}
