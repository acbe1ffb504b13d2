package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/maxviazov/member-search-service/internal/repository"

// PageExecutor runs the content round-trip and, only when the content fills the page,
// the count round-trip. Both are parameterized from the same predicate slice.
type PageExecutor[T any] struct {
	store   PageStore[T]
	tracer  trace.Tracer
	issued  metric.Int64Counter
	skipped metric.Int64Counter
	log     zerolog.Logger
}

// NewPageExecutor wires an executor over store. Pass noop providers when telemetry is off.
func NewPageExecutor[T any](store PageStore[T], tp trace.TracerProvider, mp metric.MeterProvider, logger zerolog.Logger) (*PageExecutor[T], error) {
	meter := mp.Meter(instrumentationName)
	issued, err := meter.Int64Counter("search.count.issued",
		metric.WithDescription("Count round-trips issued because the content filled the page"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search.count.issued counter: %w", err)
	}
	skipped, err := meter.Int64Counter("search.count.skipped",
		metric.WithDescription("Count round-trips avoided because the content proved the total"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search.count.skipped counter: %w", err)
	}

	return &PageExecutor[T]{
		store:   store,
		tracer:  tp.Tracer(instrumentationName),
		issued:  issued,
		skipped: skipped,
		log:     logger.With().Str("module", "repository").Str("component", "page_executor").Logger(),
	}, nil
}

// Execute fetches one page. Invalid pagination is rejected before the store is touched;
// store errors are returned as the store reported them.
func (e *PageExecutor[T]) Execute(ctx context.Context, preds []Predicate, p Pageable) (Page[T], error) {
	if err := ValidatePageable(p); err != nil {
		return Page[T]{}, err
	}

	ctx, span := e.tracer.Start(ctx, "page.execute", trace.WithAttributes(
		attribute.Int64("page.offset", p.Offset),
		attribute.Int("page.limit", p.Limit),
		attribute.Int("page.predicates", len(preds)),
	))
	defer span.End()

	content, err := e.fetch(ctx, preds, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "content query failed")
		return Page[T]{}, err
	}
	if len(content) > p.Limit {
		err := fmt.Errorf("%w: store returned %d rows for limit %d", ErrInconsistentPage, len(content), p.Limit)
		span.RecordError(err)
		span.SetStatus(codes.Error, "content overflow")
		return Page[T]{}, err
	}

	page, err := GetPage(ctx, content, p, func(ctx context.Context) (int64, error) {
		return e.count(ctx, preds)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page assembly failed")
		return Page[T]{}, err
	}

	if page.CountQueried() {
		e.issued.Add(ctx, 1)
	} else {
		e.skipped.Add(ctx, 1)
	}
	span.SetAttributes(
		attribute.Int("page.content", page.Len()),
		attribute.Int64("page.total", page.TotalElements()),
		attribute.Bool("page.count_queried", page.CountQueried()),
	)
	e.log.Debug().
		Int64("offset", p.Offset).
		Int("limit", p.Limit).
		Int("content", page.Len()).
		Int64("total", page.TotalElements()).
		Bool("count_queried", page.CountQueried()).
		Msg("page resolved")
	return page, nil
}

func (e *PageExecutor[T]) fetch(ctx context.Context, preds []Predicate, p Pageable) ([]T, error) {
	ctx, span := e.tracer.Start(ctx, "page.content")
	defer span.End()
	rows, err := e.store.FetchPage(ctx, preds, p)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

func (e *PageExecutor[T]) count(ctx context.Context, preds []Predicate) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "page.count")
	defer span.End()
	total, err := e.store.Count(ctx, preds)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("total", total))
	return total, nil
}
