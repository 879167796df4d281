// Package search implements the corpus search agents.
package search

import (
	"context"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"smallagents/config"
	"smallagents/types"
)

// DefaultCorpus is searched by Agent when no corpus is configured
var DefaultCorpus = []string{
	"SmallAgents: lightweight Python agents",
	"How to build agents with LangChain",
	"Agent orchestration patterns",
	"Writing tests for autonomous components",
}

// ConcurrentCorpus is searched by ConcurrentAgent when no corpus is configured
var ConcurrentCorpus = append(append([]string(nil), DefaultCorpus...),
	"Async programming in Python",
	"Concurrent agent execution",
	"Scalable agent architectures",
	"Event-driven agent systems",
)

// Result is the outcome of one search
type Result struct {
	Query              string        `json:"query"`
	ResultCount        int           `json:"result_count"`
	Results            []string      `json:"results"`
	ExecutionTime      time.Duration `json:"execution_time,omitempty"`
	ConcurrentSearches int           `json:"concurrent_searches,omitempty"`
	PeakInFlight       int           `json:"peak_in_flight,omitempty"`
}

func tokenize(query string) []string {
	fields := strings.Fields(query)
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}

func matches(item string, tokens []string) bool {
	lower := strings.ToLower(item)
	for _, t := range tokens {
		if !strings.Contains(lower, t) {
			return false
		}
	}
	return true
}

func validate(query string) error {
	if !utf8.ValidString(query) {
		return types.ValidationError("search.run", "query is not valid UTF-8")
	}
	return nil
}

// Agent scans its corpus for entries containing every query token
type Agent struct {
	cfg    config.SearchConfig
	corpus []string
}

// NewAgent creates a synchronous search agent
func NewAgent(cfg config.SearchConfig) *Agent {
	corpus := cfg.Corpus
	if len(corpus) == 0 {
		corpus = DefaultCorpus
	}
	return &Agent{cfg: cfg, corpus: corpus}
}

// Info describes the agent
func (a *Agent) Info() types.AgentInfo {
	return types.AgentInfo{Name: "SearchAgent", Config: a.cfg}
}

// Run returns the corpus entries matching query, case-insensitively. A query
// with no tokens matches nothing.
func (a *Agent) Run(query string) (Result, error) {
	if err := validate(query); err != nil {
		return Result{}, err
	}
	res := Result{Query: query, Results: []string{}}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return res, nil
	}
	for _, item := range a.corpus {
		if matches(item, tokens) {
			res.Results = append(res.Results, item)
		}
	}
	res.ResultCount = len(res.Results)
	return res, nil
}

// ConcurrentAgent checks corpus entries in parallel, each lookup taking
// LookupDelay, with at most ConcurrentSearches in flight.
type ConcurrentAgent struct {
	cfg    config.SearchConfig
	corpus []string
	limit  int
	delay  time.Duration
}

// NewConcurrentAgent creates a bounded-concurrency search agent
func NewConcurrentAgent(cfg config.SearchConfig) *ConcurrentAgent {
	corpus := cfg.Corpus
	if len(corpus) == 0 {
		corpus = ConcurrentCorpus
	}
	limit := cfg.ConcurrentSearches
	if limit < 1 {
		limit = 3
	}
	return &ConcurrentAgent{cfg: cfg, corpus: corpus, limit: limit, delay: cfg.LookupDelay.Duration()}
}

// Info describes the agent
func (a *ConcurrentAgent) Info() types.AgentInfo {
	return types.AgentInfo{Name: "AsyncSearchAgent", Config: a.cfg, Async: true}
}

// Run searches the corpus concurrently. Results keep corpus order.
func (a *ConcurrentAgent) Run(ctx context.Context, query string) (Result, error) {
	if err := validate(query); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res := Result{Query: query, Results: []string{}, ConcurrentSearches: a.limit}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		res.ExecutionTime = time.Since(start)
		return res, nil
	}

	var inFlight, peak int32
	hits := make([]bool, len(a.corpus))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i, item := range a.corpus {
		i, item := i, item
		g.Go(func() error {
			n := atomic.AddInt32(&inFlight, 1)
			defer atomic.AddInt32(&inFlight, -1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}

			if err := a.lookup(gctx); err != nil {
				return err
			}
			hits[i] = matches(item, tokens)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for i, hit := range hits {
		if hit {
			res.Results = append(res.Results, a.corpus[i])
		}
	}
	res.ResultCount = len(res.Results)
	res.PeakInFlight = int(peak)
	res.ExecutionTime = time.Since(start)
	return res, nil
}

func (a *ConcurrentAgent) lookup(ctx context.Context) error {
	if a.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(a.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
