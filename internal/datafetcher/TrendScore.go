/*
This file fetches the ETH trend score that drives the allocation table.

The endpoint is called once per cycle with no retry. Any failure is reported as "no signal" so
the cycle stops before touching the chain.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ethmom/rebalancer/internal/logger"
	"github.com/ethmom/rebalancer/internal/types"
)

var signalLogger = logger.GetForComponent("signal_fetcher")

var (
	ErrSignalConfiguration = errors.New("signal endpoint configuration error")
	ErrInvalidSignalData   = errors.New("invalid trend score received")
)

const maxSignalBodyBytes = 1 << 20

// TrendScoreFetcher reads one numeric field from a JSON endpoint.
type TrendScoreFetcher struct {
	endpoint string
	field    string
	client   *http.Client
}

// NewTrendScoreFetcher creates a fetcher. field is a gjson path such as "trend_score" or
// "data.0.score".
func NewTrendScoreFetcher(endpoint, field string, timeout time.Duration) (*TrendScoreFetcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint cannot be empty", ErrSignalConfiguration)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("%w: endpoint must be an http(s) URL", ErrSignalConfiguration)
	}
	if strings.TrimSpace(field) == "" {
		return nil, fmt.Errorf("%w: field cannot be empty", ErrSignalConfiguration)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive", ErrSignalConfiguration)
	}

	return &TrendScoreFetcher{
		endpoint: endpoint,
		field:    field,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// FetchTrendScore returns the current trend score. ok is false when the signal is unavailable;
// the cause has already been logged.
func (f *TrendScoreFetcher) FetchTrendScore(ctx context.Context) (float64, bool) {
	score, err := f.Fetch(ctx)
	if err != nil {
		signalLogger.Error().
			Err(err).
			Str("field", f.field).
			Msg("Trend score unavailable")
		return 0, false
	}

	signalLogger.Info().
		Float64("trendScore", score).
		Msg("Trend score fetched")
	return score, true
}

// Fetch performs the HTTP request. Every error wraps types.ErrSignalUnavailable.
func (f *TrendScoreFetcher) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to build request: %w", types.ErrSignalUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: HTTP request failed: %w", types.ErrSignalUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: endpoint returned status %d", types.ErrSignalUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSignalBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read response body: %w", types.ErrSignalUnavailable, err)
	}

	signalLogger.Debug().
		Int("statusCode", resp.StatusCode).
		Int("bodyLength", len(body)).
		Msg("Signal response received")

	score, err := parseTrendScore(body, f.field)
	if err != nil {
		return 0, errors.Join(types.ErrSignalUnavailable, err)
	}
	return score, nil
}

// parseTrendScore extracts field from body. Numbers and numeric strings are accepted.
func parseTrendScore(body []byte, field string) (float64, error) {
	if len(body) == 0 {
		return 0, fmt.Errorf("%w: empty response body", ErrInvalidSignalData)
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%w: response is not valid JSON", ErrInvalidSignalData)
	}

	result := gjson.GetBytes(body, field)
	if !result.Exists() {
		return 0, fmt.Errorf("%w: field %q not found", ErrInvalidSignalData, field)
	}

	var score float64
	switch result.Type {
	case gjson.Number:
		score = result.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(result.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %q is not numeric: %q", ErrInvalidSignalData, field, result.Str)
		}
		score = parsed
	default:
		return 0, fmt.Errorf("%w: field %q has type %s", ErrInvalidSignalData, field, result.Type)
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: field %q is not finite", ErrInvalidSignalData, field)
	}
	return score, nil
}
