package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/maxviazov/member-search-service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countSpy records how often the deferred count runs.
type countSpy struct {
	calls int
	total int64
	err   error
}

func (c *countSpy) fn(context.Context) (int64, error) {
	c.calls++
	return c.total, c.err
}

func rows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestGetPage_CountOptimization(t *testing.T) {
	cases := []struct {
		name        string
		content     []int
		pageable    repository.Pageable
		countTotal  int64
		wantCalls   int
		wantTotal   int64
		wantPages   int
		wantNumber  int
		wantHasNext bool
	}{
		{"first page short", rows(2), repository.Pageable{Offset: 0, Limit: 3}, 999, 0, 2, 1, 0, false},
		{"later page short", rows(1), repository.Pageable{Offset: 6, Limit: 3}, 999, 0, 7, 3, 2, false},
		{"full page counts", rows(3), repository.Pageable{Offset: 0, Limit: 3}, 100, 1, 100, 34, 0, true},
		{"full last page counts", rows(3), repository.Pageable{Offset: 3, Limit: 3}, 6, 1, 6, 2, 1, false},
		{"empty first page", rows(0), repository.Pageable{Offset: 0, Limit: 10}, 999, 0, 0, 0, 0, false},
		{"empty page past the end", rows(0), repository.Pageable{Offset: 40, Limit: 10}, 999, 0, 40, 4, 4, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spy := &countSpy{total: tc.countTotal}
			page, err := repository.GetPage(context.Background(), tc.content, tc.pageable, spy.fn)
			require.NoError(t, err)

			assert.Equal(t, tc.wantCalls, spy.calls)
			assert.Equal(t, tc.wantCalls == 1, page.CountQueried())
			assert.Equal(t, tc.wantTotal, page.TotalElements())
			assert.Equal(t, tc.wantPages, page.TotalPages())
			assert.Equal(t, tc.wantNumber, page.PageNumber())
			assert.Equal(t, tc.pageable.Limit, page.PageSize())
			assert.Equal(t, tc.pageable.Offset, page.Offset())
			assert.Equal(t, tc.wantHasNext, page.HasNext())
			assert.Equal(t, tc.content, page.Content())
		})
	}
}

func TestGetPage_CountErrorFailsWholePage(t *testing.T) {
	boom := errors.New("count failed")
	spy := &countSpy{err: boom}

	page, err := repository.GetPage(context.Background(), rows(3), repository.Pageable{Limit: 3}, spy.fn)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, spy.calls)
	assert.Zero(t, page.Len())
	assert.Zero(t, page.TotalElements())
}

func TestGetPage_CountBelowSeenRows(t *testing.T) {
	spy := &countSpy{total: 4}

	_, err := repository.GetPage(context.Background(), rows(3), repository.Pageable{Offset: 3, Limit: 3}, spy.fn)
	require.ErrorIs(t, err, repository.ErrInconsistentCount)
}

func TestGetPage_ContentOverflow(t *testing.T) {
	spy := &countSpy{total: 100}

	_, err := repository.GetPage(context.Background(), rows(4), repository.Pageable{Limit: 3}, spy.fn)
	require.ErrorIs(t, err, repository.ErrInconsistentPage)
	assert.Zero(t, spy.calls)
}

func TestGetPage_InvalidPageable(t *testing.T) {
	spy := &countSpy{total: 1}

	_, err := repository.GetPage(context.Background(), rows(0), repository.Pageable{Limit: 0}, spy.fn)
	require.ErrorIs(t, err, repository.ErrInvalidPagination)
	_, err = repository.GetPage(context.Background(), rows(0), repository.Pageable{Offset: -1, Limit: 1}, spy.fn)
	require.ErrorIs(t, err, repository.ErrInvalidPagination)
	assert.Zero(t, spy.calls)
}

func TestNewPage_Invariants(t *testing.T) {
	_, err := repository.NewPage(rows(2), repository.Pageable{Limit: 3}, 1)
	require.ErrorIs(t, err, repository.ErrInconsistentCount)

	_, err = repository.NewPage(rows(4), repository.Pageable{Limit: 3}, 10)
	require.ErrorIs(t, err, repository.ErrInconsistentPage)

	page, err := repository.NewPage(rows(3), repository.Pageable{Limit: 3}, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalPages())
	assert.False(t, page.CountQueried())
}

func TestPage_ContentIsCopied(t *testing.T) {
	src := rows(2)
	page, err := repository.NewPage(src, repository.Pageable{Limit: 2}, 2)
	require.NoError(t, err)

	src[0] = 42
	got := page.Content()
	got[1] = 42
	assert.Equal(t, []int{0, 1}, page.Content())
}

func TestPage_MarshalJSON(t *testing.T) {
	page, err := repository.NewPage([]string{"member1"}, repository.Pageable{Offset: 2, Limit: 2}, 3)
	require.NoError(t, err)

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"content": ["member1"],
		"total_elements": 3,
		"total_pages": 2,
		"page_number": 1,
		"page_size": 2,
		"offset": 2,
		"last": true
	}`, string(raw))

	empty, err := repository.NewPage[string](nil, repository.Pageable{Limit: 5}, 0)
	require.NoError(t, err)
	raw, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"content":[]`)
}
