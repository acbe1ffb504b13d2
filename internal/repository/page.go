package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// CountFunc is the deferred total-count round-trip. GetPage invokes it at most once.
type CountFunc func(ctx context.Context) (int64, error)

// Page is one immutable window of results plus its position in the full result set.
type Page[T any] struct {
	content       []T
	totalElements int64
	totalPages    int
	pageNumber    int
	pageSize      int
	offset        int64
	countQueried  bool
}

// NewPage assembles a page from already-resolved content and total.
// It enforces len(content) <= pageSize and len(content) <= total.
func NewPage[T any](content []T, p Pageable, total int64) (Page[T], error) {
	if p.Limit <= 0 {
		return Page[T]{}, fmt.Errorf("%w: limit must be > 0", ErrInvalidPagination)
	}
	if len(content) > p.Limit {
		return Page[T]{}, fmt.Errorf("%w: %d rows for page size %d", ErrInconsistentPage, len(content), p.Limit)
	}
	if total < int64(len(content)) {
		return Page[T]{}, fmt.Errorf("%w: total %d below content size %d", ErrInconsistentCount, total, len(content))
	}

	cp := make([]T, len(content))
	copy(cp, content)
	return Page[T]{
		content:       cp,
		totalElements: total,
		totalPages:    totalPages(total, p.Limit),
		pageNumber:    p.PageNumber(),
		pageSize:      p.Limit,
		offset:        p.Offset,
	}, nil
}

// GetPage resolves the total for content fetched with p and assembles the page.
//
// A short page (fewer rows than the limit) proves it is the last one, so the total is
// offset+len(content) and count is never called. A full page cannot tell, so count is
// invoked exactly once; a failure there fails the whole page.
//
// An empty page past the end is a short page too: it reports total == offset without
// counting, even when the real total is smaller. Callers that need the exact total for
// an out-of-range offset must count themselves.
func GetPage[T any](ctx context.Context, content []T, p Pageable, count CountFunc) (Page[T], error) {
	if err := ValidatePageable(p); err != nil {
		return Page[T]{}, err
	}
	if len(content) > p.Limit {
		return Page[T]{}, fmt.Errorf("%w: %d rows for page size %d", ErrInconsistentPage, len(content), p.Limit)
	}

	if len(content) < p.Limit {
		return NewPage(content, p, p.Offset+int64(len(content)))
	}

	total, err := count(ctx)
	if err != nil {
		return Page[T]{}, err
	}
	if seen := p.Offset + int64(len(content)); total < seen {
		return Page[T]{}, fmt.Errorf("%w: count %d below offset+content %d", ErrInconsistentCount, total, seen)
	}
	page, err := NewPage(content, p, total)
	if err != nil {
		return Page[T]{}, err
	}
	page.countQueried = true
	return page, nil
}

func totalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	s := int64(size)
	return int((total + s - 1) / s)
}

// Content returns a copy of the page rows.
func (p Page[T]) Content() []T {
	out := make([]T, len(p.content))
	copy(out, p.content)
	return out
}

func (p Page[T]) Len() int             { return len(p.content) }
func (p Page[T]) TotalElements() int64 { return p.totalElements }
func (p Page[T]) TotalPages() int      { return p.totalPages }
func (p Page[T]) PageNumber() int      { return p.pageNumber }
func (p Page[T]) PageSize() int        { return p.pageSize }
func (p Page[T]) Offset() int64        { return p.offset }

// CountQueried reports whether the total came from a count round-trip.
func (p Page[T]) CountQueried() bool { return p.countQueried }

// HasNext reports whether rows exist past this window.
func (p Page[T]) HasNext() bool { return p.offset+int64(len(p.content)) < p.totalElements }

// IsLast is the negation of HasNext.
func (p Page[T]) IsLast() bool { return !p.HasNext() }

type pageJSON[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
	PageNumber    int   `json:"page_number"`
	PageSize      int   `json:"page_size"`
	Offset        int64 `json:"offset"`
	Last          bool  `json:"last"`
}

// MarshalJSON exposes the page to thin transports.
func (p Page[T]) MarshalJSON() ([]byte, error) {
	content := p.content
	if content == nil {
		content = []T{}
	}
	return json.Marshal(pageJSON[T]{
		Content:       content,
		TotalElements: p.totalElements,
		TotalPages:    p.totalPages,
		PageNumber:    p.pageNumber,
		PageSize:      p.pageSize,
		Offset:        p.offset,
		Last:          p.IsLast(),
	})
}
