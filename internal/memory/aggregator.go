package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultContextLimit is used when RetrieveContext gets limit <= 0.
const DefaultContextLimit = 5

var tracer = otel.Tracer("agentloop/memory")

// DefaultSubLimits are the per-source caps.
func DefaultSubLimits() map[ItemType]int {
	return map[ItemType]int{
		ItemConversation: 3,
		ItemTask:         1,
		ItemInteraction:  2,
	}
}

type aggregatorSource struct {
	source Source
	limit  int
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithSource adds src with its own sub-limit. Sources are consulted in the
// order they are added, which is also the tie-break order for items of the
// same type and distance.
func WithSource(src Source, limit int) AggregatorOption {
	return func(a *Aggregator) {
		a.sources = append(a.sources, aggregatorSource{source: src, limit: limit})
	}
}

// WithSources adds each source with the sub-limit for its type.
func WithSources(limits map[ItemType]int, sources ...Source) AggregatorOption {
	return func(a *Aggregator) {
		for _, src := range sources {
			a.sources = append(a.sources, aggregatorSource{source: src, limit: limits[src.Type()]})
		}
	}
}

// Aggregator merges items from several sources into one ranked list.
type Aggregator struct {
	sources []aggregatorSource
	logger  *zap.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(logger *zap.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type sourceResult struct {
	items []ContextItem
	err   error
}

// RetrieveContext queries every applicable source and returns at most limit
// items in ascending distance. Ties go to the higher-priority type
// (conversation, interaction, task) and then to retrieval order. The task
// source is skipped when taskID is empty. A failing source contributes
// nothing; the others are still returned.
func (a *Aggregator) RetrieveContext(ctx context.Context, query, sessionID, taskID string, limit int) []ContextItem {
	if limit <= 0 {
		limit = DefaultContextLimit
	}

	ctx, span := tracer.Start(ctx, "memory.query")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int("limit", limit),
	)

	results := make([]sourceResult, len(a.sources))
	var wg sync.WaitGroup
	for i, s := range a.sources {
		if s.limit <= 0 {
			continue
		}
		if s.source.Type() == ItemTask && taskID == "" {
			continue
		}
		q := Query{
			Text:      query,
			SessionID: sessionID,
			TaskID:    taskID,
			Limit:     min(limit, s.limit),
		}
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = retrieve(ctx, src, q)
		}(i, s.source)
	}
	wg.Wait()

	type ranked struct {
		item  ContextItem
		order int
	}
	var all []ranked
	for i, r := range results {
		src := a.sources[i].source
		if r.err != nil {
			sourceFailures.WithLabelValues(string(src.Type())).Inc()
			a.logger.Warn("memory source failed, continuing without it",
				zap.String("source", string(src.Type())),
				zap.String("session_id", sessionID),
				zap.Error(r.err))
			continue
		}
		// Sources may return more than asked; enforce the sub-limit here.
		items := r.items
		if sub := min(limit, a.sources[i].limit); len(items) > sub {
			items = items[:sub]
		}
		for _, item := range items {
			all = append(all, ranked{item: item, order: len(all)})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		x, y := all[i], all[j]
		if x.item.Distance != y.item.Distance {
			return x.item.Distance < y.item.Distance
		}
		if px, py := x.item.Type.priority(), y.item.Type.priority(); px != py {
			return px < py
		}
		return x.order < y.order
	})

	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]ContextItem, len(all))
	for i, r := range all {
		out[i] = r.item
	}
	span.SetAttributes(attribute.Int("results_count", len(out)))
	return out
}

func retrieve(ctx context.Context, src Source, q Query) (res sourceResult) {
	defer func() {
		if r := recover(); r != nil {
			res = sourceResult{err: fmt.Errorf("%w: panic: %v", ErrSourceUnavailable, r)}
		}
	}()
	items, err := src.Retrieve(ctx, q)
	return sourceResult{items: items, err: err}
}
