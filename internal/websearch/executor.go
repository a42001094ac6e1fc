package websearch

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shiraberu/internal/models"
	"github.com/hyperjump/shiraberu/internal/provider"
)

// DefaultCallTimeout bounds one provider call; a timeout counts as a
// provider error and triggers failover.
const DefaultCallTimeout = 10 * time.Second

// Executor runs a set of queries against an ordered provider chain.
type Executor struct {
	filter      *DomainFilter
	callTimeout time.Duration
	logger      *zap.Logger
}

// NewExecutor creates an executor. filter may be nil to admit everything.
func NewExecutor(filter *DomainFilter, callTimeout time.Duration, logger *zap.Logger) *Executor {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{filter: filter, callTimeout: callTimeout, logger: logger}
}

// Report is the outcome of one Execute call. A query whose whole chain
// failed contributes zero results and bumps ExhaustedQueries; only when
// every query is exhausted does the pipeline treat search as failed.
type Report struct {
	Results          []models.SearchResult
	Failovers        int
	ExhaustedQueries int
}

// Execute fans queries out to the chain with at most maxConcurrency provider
// calls in flight, applies the domain filter, and dedups by normalized URL.
// Per-provider result order is preserved; queries contribute in input order.
func (e *Executor) Execute(ctx context.Context, queries []models.SearchQuery, chain []provider.SearchProvider, searchType models.SearchType, resultCount, maxConcurrency int) (*Report, error) {
	if len(queries) == 0 || len(chain) == 0 {
		return &Report{ExhaustedQueries: len(queries)}, nil
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	perQuery := make([][]models.SearchResult, len(queries))
	var mu sync.Mutex
	report := &Report{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			results, failovers, err := e.searchWithFailover(gctx, q.Text, chain, searchType, resultCount)
			mu.Lock()
			report.Failovers += failovers
			if err != nil {
				report.ExhaustedQueries++
			} else {
				perQuery[i] = results
			}
			mu.Unlock()
			if err != nil && !isProviderFailure(err) {
				// Cancellation of the whole invocation, not a chain failure.
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]models.SearchResult, 0)
	for _, rs := range perQuery {
		for _, r := range rs {
			if e.filter == nil || e.filter.Admit(r) {
				merged = append(merged, r)
			}
		}
	}
	report.Results = DedupByURL(merged)
	return report, nil
}

// searchWithFailover tries each provider in order until one returns results.
// Saturated rate limiters get one jittered retry against the same provider
// before failing over.
func (e *Executor) searchWithFailover(ctx context.Context, query string, chain []provider.SearchProvider, searchType models.SearchType, count int) ([]models.SearchResult, int, error) {
	var lastErr error
	failovers := 0
	for i, p := range chain {
		results, err := e.callProvider(ctx, p, query, searchType, count)
		if errors.Is(err, provider.ErrCapacityExceeded) {
			if sleepErr := sleepWithJitter(ctx); sleepErr != nil {
				return nil, failovers, sleepErr
			}
			results, err = e.callProvider(ctx, p, query, searchType, count)
		}
		if err == nil {
			return results, failovers, nil
		}
		if ctx.Err() != nil {
			return nil, failovers, ctx.Err()
		}
		lastErr = err
		if i < len(chain)-1 {
			failovers++
			e.logger.Warn("provider failed, failing over",
				zap.String("provider", p.ID()),
				zap.String("query", query),
				zap.Error(err))
		}
	}
	e.logger.Warn("provider chain exhausted for query",
		zap.String("query", query), zap.Error(lastErr))
	return nil, failovers, lastErr
}

func (e *Executor) callProvider(ctx context.Context, p provider.SearchProvider, query string, searchType models.SearchType, count int) ([]models.SearchResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return p.Search(callCtx, query, searchType, count)
}

// isProviderFailure reports whether err is a failure local to one query's
// provider chain (absorbed) rather than whole-invocation cancellation.
func isProviderFailure(err error) bool {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return true
	}
	if errors.Is(err, provider.ErrCapacityExceeded) {
		return true
	}
	// A per-call deadline is a provider timeout unless the parent is done.
	return errors.Is(err, context.DeadlineExceeded)
}

func sleepWithJitter(ctx context.Context) error {
	d := 100*time.Millisecond + time.Duration(rand.Int63n(int64(400*time.Millisecond)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
