package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/procurement-sim/internal/resilience"
	"github.com/sells-group/procurement-sim/internal/risk"
)

// HTTPOptions configures HTTPScorer.
type HTTPOptions struct {
	URL        string
	Timeout    time.Duration
	RatePerSec float64
	BatchSize  int
	// Parallel bounds concurrent batches. Default 2.
	Parallel int
	Backoff  resilience.Backoff
	Client   *http.Client
}

// HTTPScorer scores features against a remote model service. The service
// receives {"rows":[...]} and answers {"probabilities":[...]}; a 422 answer
// may list offending rows as {"errors":[{"row":i,"reason":"..."}]}.
type HTTPScorer struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewHTTPScorer validates opts and applies defaults.
func NewHTTPScorer(opts HTTPOptions) (*HTTPScorer, error) {
	if opts.URL == "" {
		return nil, eris.New("scorer: url is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Parallel <= 0 {
		opts.Parallel = 2
	}
	if opts.Backoff.OnRetry == nil {
		opts.Backoff.OnRetry = resilience.LogRetry(opts.URL)
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &HTTPScorer{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		breaker: resilience.NewBreaker(opts.URL, 5, 30*time.Second),
	}, nil
}

type scoreRequest struct {
	Rows []risk.Features `json:"rows"`
}

type scoreResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Errors        []struct {
		Row    int    `json:"row"`
		Reason string `json:"reason"`
	} `json:"errors"`
}

// Score implements risk.Scorer. Batches run concurrently; any failing batch
// fails the call and row errors are reported against the full input.
func (s *HTTPScorer) Score(ctx context.Context, rows []risk.Features) ([]float64, error) {
	out := make([]float64, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallel)

	for start := 0; start < len(rows); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(rows))
		g.Go(func() error {
			probs, err := resilience.DoVal(gctx, s.opts.Backoff, func(ctx context.Context) ([]float64, error) {
				if err := s.limiter.Wait(ctx); err != nil {
					return nil, err
				}
				return resilience.Call(ctx, s.breaker, func(ctx context.Context) ([]float64, error) {
					return s.post(ctx, rows[start:end])
				})
			})
			if err != nil {
				var rowErr *risk.RowError
				if errors.As(err, &rowErr) {
					shifted := make([]int, len(rowErr.Rows))
					for i, r := range rowErr.Rows {
						shifted[i] = r + start
					}
					return &risk.RowError{Rows: shifted, Reason: rowErr.Reason}
				}
				return eris.Wrapf(err, "scorer: batch %d-%d", start, end)
			}
			copy(out[start:end], probs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	zap.L().Debug("scorer: remote scoring complete", zap.Int("rows", len(rows)))
	return out, nil
}

func (s *HTTPScorer) post(ctx context.Context, batch []risk.Features) ([]float64, error) {
	body, err := json.Marshal(scoreRequest{Rows: batch})
	if err != nil {
		return nil, eris.Wrap(err, "scorer: encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.URL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scorer: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: post")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, resilience.Transient(eris.Wrap(err, "scorer: read response"), resp.StatusCode)
	}

	if resilience.TransientStatus(resp.StatusCode) {
		return nil, resilience.Transient(eris.Errorf("scorer: status %d", resp.StatusCode), resp.StatusCode)
	}

	var sr scoreResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &sr); err != nil {
			return nil, eris.Wrapf(err, "scorer: decode response (status %d)", resp.StatusCode)
		}
	}

	if resp.StatusCode == http.StatusUnprocessableEntity && len(sr.Errors) > 0 {
		idx := make([]int, len(sr.Errors))
		for i, e := range sr.Errors {
			idx[i] = e.Row
		}
		return nil, &risk.RowError{Rows: idx, Reason: sr.Errors[0].Reason}
	}
	if resp.StatusCode/100 != 2 {
		return nil, eris.Errorf("scorer: status %d", resp.StatusCode)
	}
	if len(sr.Probabilities) != len(batch) {
		return nil, eris.Errorf("scorer: got %d probabilities for %d rows", len(sr.Probabilities), len(batch))
	}
	return sr.Probabilities, nil
}
