package contract

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
	"github.com/rs/zerolog"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Factory builds a fresh, empty store. Search and persistence must share the same data.
type Factory func(t *testing.T) (search repository.MemberSearchStore, members repository.MemberRepository, cleanup func())

// SpyStore records every round-trip made through it.
type SpyStore struct {
	Inner repository.MemberSearchStore

	mu         sync.Mutex
	fetchPreds [][]repository.Predicate
	countPreds [][]repository.Predicate
	diverged   bool
}

func (s *SpyStore) FetchPage(ctx context.Context, preds []repository.Predicate, p repository.Pageable) ([]model.MemberTeam, error) {
	s.mu.Lock()
	s.fetchPreds = append(s.fetchPreds, preds)
	s.mu.Unlock()
	return s.Inner.FetchPage(ctx, preds, p)
}

func (s *SpyStore) Count(ctx context.Context, preds []repository.Predicate) (int64, error) {
	s.mu.Lock()
	s.countPreds = append(s.countPreds, preds)
	if n := len(s.fetchPreds); n == 0 || !reflect.DeepEqual(preds, s.fetchPreds[n-1]) {
		s.diverged = true
	}
	s.mu.Unlock()
	return s.Inner.Count(ctx, preds)
}

func (s *SpyStore) FetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetchPreds)
}

func (s *SpyStore) CountCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.countPreds)
}

// SamePredicates reports whether every count call used the predicates of the fetch call before it.
func (s *SpyStore) SamePredicates() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.diverged
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	spy  *SpyStore
	exec *repository.PageExecutor[model.MemberTeam]
	repo repository.MemberRepository
}

func newFixture(t *testing.T, makeStore Factory) fixture {
	t.Helper()
	search, members, cleanup := makeStore(t)
	t.Cleanup(cleanup)
	spy := &SpyStore{Inner: search}
	exec, err := repository.NewPageExecutor[model.MemberTeam](spy, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), zerolog.Nop())
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	return fixture{spy: spy, exec: exec, repo: members}
}

// seedFour creates teamA{member1:10, member2:20} and teamB{member3:30, member4:40}.
func (f fixture) seedFour(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	teamA, err := f.repo.CreateTeam(ctx, model.Team{Name: "teamA"})
	if err != nil {
		t.Fatalf("seed teamA: %v", err)
	}
	teamB, err := f.repo.CreateTeam(ctx, model.Team{Name: "teamB"})
	if err != nil {
		t.Fatalf("seed teamB: %v", err)
	}
	seed := []model.Member{
		{Username: "member1", Age: 10, TeamID: &teamA.ID},
		{Username: "member2", Age: 20, TeamID: &teamA.ID},
		{Username: "member3", Age: 30, TeamID: &teamB.ID},
		{Username: "member4", Age: 40, TeamID: &teamB.ID},
	}
	for _, m := range seed {
		if _, err := f.repo.CreateMember(ctx, m); err != nil {
			t.Fatalf("seed %s: %v", m.Username, err)
		}
	}
}

// seedHundred creates member0..member99 with age == index, alternating between two teams.
func (f fixture) seedHundred(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	teamA, err := f.repo.CreateTeam(ctx, model.Team{Name: "teamA"})
	if err != nil {
		t.Fatalf("seed teamA: %v", err)
	}
	teamB, err := f.repo.CreateTeam(ctx, model.Team{Name: "teamB"})
	if err != nil {
		t.Fatalf("seed teamB: %v", err)
	}
	for i := 0; i < 100; i++ {
		team := teamA.ID
		if i%2 == 1 {
			team = teamB.ID
		}
		if _, err := f.repo.CreateMember(ctx, model.Member{Username: fmt.Sprintf("member%d", i), Age: i, TeamID: &team}); err != nil {
			t.Fatalf("seed member%d: %v", i, err)
		}
	}
}

func (f fixture) search(t *testing.T, cond model.MemberSearchCondition, p repository.Pageable) repository.Page[model.MemberTeam] {
	t.Helper()
	page, err := f.exec.Execute(context.Background(), repository.ComposeMemberPredicates(cond), p)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	return page
}

func usernames(rows []model.MemberTeam) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Username)
	}
	return out
}

// RunMemberSearchContract checks the paging, counting and filtering behaviour every store must share.
func RunMemberSearchContract(t *testing.T, makeStore Factory) {
	t.Helper()

	t.Run("filtered_short_page_skips_count", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		cond := model.MemberSearchCondition{AgeGoe: ptr(35), AgeLoe: ptr(40), TeamName: ptr("teamB")}
		page := f.search(t, cond, repository.Pageable{Offset: 0, Limit: 20})

		got := page.Content()
		if len(got) != 1 || got[0].Username != "member4" || got[0].TeamName == nil || *got[0].TeamName != "teamB" {
			t.Fatalf("unexpected content: %+v", got)
		}
		if page.TotalElements() != 1 || page.TotalPages() != 1 {
			t.Fatalf("unexpected totals: total=%d pages=%d", page.TotalElements(), page.TotalPages())
		}
		if f.spy.CountCalls() != 0 || page.CountQueried() {
			t.Fatalf("count must be skipped, got %d calls", f.spy.CountCalls())
		}
	})

	t.Run("full_page_issues_one_mirrored_count", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		page := f.search(t, model.MemberSearchCondition{}, repository.Pageable{Offset: 0, Limit: 3,
			Sort: []repository.Order{{Property: model.AttrUsername, Direction: repository.Asc}}})

		if want := []string{"member1", "member2", "member3"}; !reflect.DeepEqual(usernames(page.Content()), want) {
			t.Fatalf("unexpected content: %v", usernames(page.Content()))
		}
		if page.TotalElements() != 4 || page.TotalPages() != 2 || !page.HasNext() {
			t.Fatalf("unexpected totals: total=%d pages=%d", page.TotalElements(), page.TotalPages())
		}
		if f.spy.FetchCalls() != 1 || f.spy.CountCalls() != 1 {
			t.Fatalf("want 1 fetch and 1 count, got %d/%d", f.spy.FetchCalls(), f.spy.CountCalls())
		}
		if !f.spy.SamePredicates() {
			t.Fatalf("count predicates diverged from content predicates")
		}
	})

	t.Run("filtered_full_page_counts_with_same_predicates", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		page := f.search(t, model.MemberSearchCondition{TeamName: ptr("teamA")}, repository.Pageable{Offset: 0, Limit: 2})

		if page.TotalElements() != 2 || f.spy.CountCalls() != 1 || !f.spy.SamePredicates() {
			t.Fatalf("unexpected: total=%d counts=%d", page.TotalElements(), f.spy.CountCalls())
		}
	})

	t.Run("short_last_page_at_offset_infers_total", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		page := f.search(t, model.MemberSearchCondition{}, repository.Pageable{Offset: 3, Limit: 3})

		if want := []string{"member4"}; !reflect.DeepEqual(usernames(page.Content()), want) {
			t.Fatalf("unexpected content: %v", usernames(page.Content()))
		}
		if page.TotalElements() != 4 || page.PageNumber() != 1 || f.spy.CountCalls() != 0 {
			t.Fatalf("unexpected: total=%d page=%d counts=%d", page.TotalElements(), page.PageNumber(), f.spy.CountCalls())
		}
	})

	t.Run("high_age_bound_over_hundred_rows", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedHundred(t)
		page := f.search(t, model.MemberSearchCondition{AgeGoe: ptr(99)}, repository.Pageable{Offset: 0, Limit: 50})

		if page.Len() >= 50 || page.Len() > 5 {
			t.Fatalf("unexpected content size %d", page.Len())
		}
		if page.TotalElements() != int64(page.Len()) || f.spy.CountCalls() != 0 {
			t.Fatalf("unexpected: total=%d counts=%d", page.TotalElements(), f.spy.CountCalls())
		}
	})

	t.Run("zero_bound_is_a_real_bound", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedHundred(t)
		page := f.search(t, model.MemberSearchCondition{AgeLoe: ptr(0)}, repository.Pageable{Offset: 0, Limit: 10})

		if want := []string{"member0"}; !reflect.DeepEqual(usernames(page.Content()), want) {
			t.Fatalf("unexpected content: %v", usernames(page.Content()))
		}
	})

	t.Run("blank_username_matches_all", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		page := f.search(t, model.MemberSearchCondition{Username: ptr("   ")}, repository.Pageable{Offset: 0, Limit: 10})

		if page.TotalElements() != 4 || len(f.spy.fetchPredsAt(0)) != 0 {
			t.Fatalf("blank username must be ignored: total=%d", page.TotalElements())
		}
	})

	t.Run("members_without_team_are_returned", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		if _, err := f.repo.CreateMember(context.Background(), model.Member{Username: "loner", Age: 50}); err != nil {
			t.Fatalf("seed loner: %v", err)
		}
		page := f.search(t, model.MemberSearchCondition{Username: ptr("loner")}, repository.Pageable{Offset: 0, Limit: 10})
		got := page.Content()
		if len(got) != 1 || got[0].TeamID != nil || got[0].TeamName != nil {
			t.Fatalf("unexpected content: %+v", got)
		}

		byTeam := f.search(t, model.MemberSearchCondition{TeamName: ptr("teamA")}, repository.Pageable{Offset: 0, Limit: 10})
		for _, r := range byTeam.Content() {
			if r.Username == "loner" {
				t.Fatalf("team filter must exclude members without team")
			}
		}
	})

	t.Run("descending_sort", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		page := f.search(t, model.MemberSearchCondition{}, repository.Pageable{Offset: 0, Limit: 10,
			Sort: []repository.Order{{Property: model.AttrAge, Direction: repository.Desc}}})

		if want := []string{"member4", "member3", "member2", "member1"}; !reflect.DeepEqual(usernames(page.Content()), want) {
			t.Fatalf("unexpected order: %v", usernames(page.Content()))
		}
	})

	t.Run("identical_requests_yield_identical_pages", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		p := repository.Pageable{Offset: 1, Limit: 2}
		first := f.search(t, model.MemberSearchCondition{}, p)
		second := f.search(t, model.MemberSearchCondition{}, p)

		if !reflect.DeepEqual(first.Content(), second.Content()) || first.TotalElements() != second.TotalElements() {
			t.Fatalf("pages differ: %+v vs %+v", first.Content(), second.Content())
		}
	})

	t.Run("unpaged_search_filters_like_paged", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		cond := model.MemberSearchCondition{AgeGoe: ptr(35), AgeLoe: ptr(40), TeamName: ptr("teamB")}
		got, err := f.repo.Search(context.Background(), repository.ComposeMemberPredicates(cond))
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if want := []string{"member4"}; !reflect.DeepEqual(usernames(got), want) {
			t.Fatalf("unexpected content: %v", usernames(got))
		}
		if got[0].TeamName == nil || *got[0].TeamName != "teamB" {
			t.Fatalf("team not joined: %+v", got[0])
		}
		if f.spy.FetchCalls() != 0 || f.spy.CountCalls() != 0 {
			t.Fatalf("unpaged search must not go through the page store")
		}
	})

	t.Run("unpaged_search_without_filter_is_ordered", func(t *testing.T) {
		f := newFixture(t, makeStore)
		f.seedFour(t)
		if _, err := f.repo.CreateMember(context.Background(), model.Member{Username: "member0", Age: 5}); err != nil {
			t.Fatalf("seed member0: %v", err)
		}
		got, err := f.repo.Search(context.Background(), nil)
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if want := []string{"member0", "member1", "member2", "member3", "member4"}; !reflect.DeepEqual(usernames(got), want) {
			t.Fatalf("unexpected order: %v", usernames(got))
		}
		if got[0].TeamID != nil || got[0].TeamName != nil {
			t.Fatalf("member without team must have no team columns: %+v", got[0])
		}
	})

	t.Run("text_sort_is_byte_order", func(t *testing.T) {
		f := newFixture(t, makeStore)
		for _, name := range []string{"alice", "Zed", "Bob"} {
			if _, err := f.repo.CreateMember(context.Background(), model.Member{Username: name, Age: 30}); err != nil {
				t.Fatalf("seed %s: %v", name, err)
			}
		}
		page := f.search(t, model.MemberSearchCondition{}, repository.Pageable{Offset: 0, Limit: 10,
			Sort: []repository.Order{{Property: model.AttrUsername, Direction: repository.Asc}}})
		if want := []string{"Bob", "Zed", "alice"}; !reflect.DeepEqual(usernames(page.Content()), want) {
			t.Fatalf("unexpected order: %v", usernames(page.Content()))
		}
	})

	t.Run("invalid_pagination_never_reaches_store", func(t *testing.T) {
		f := newFixture(t, makeStore)
		for _, p := range []repository.Pageable{{Offset: 0, Limit: 0}, {Offset: -1, Limit: 5}} {
			_, err := f.exec.Execute(context.Background(), nil, p)
			if !errors.Is(err, repository.ErrInvalidPagination) {
				t.Fatalf("expected ErrInvalidPagination for %+v, got %v", p, err)
			}
		}
		if f.spy.FetchCalls() != 0 || f.spy.CountCalls() != 0 {
			t.Fatalf("store touched on invalid request")
		}
	})
}

// RunMemberRepositoryContract covers the persistence side used to seed searches.
func RunMemberRepositoryContract(t *testing.T, makeStore Factory) {
	t.Helper()

	t.Run("create_and_get", func(t *testing.T) {
		_, repo, cleanup := makeStore(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		team, err := repo.CreateTeam(ctx, model.Team{Name: "teamA"})
		if err != nil {
			t.Fatalf("create team: %v", err)
		}
		created, err := repo.CreateMember(ctx, model.Member{Username: "member1", Age: 10, TeamID: &team.ID})
		if err != nil {
			t.Fatalf("create member: %v", err)
		}
		got, err := repo.GetByID(ctx, created.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Username != "member1" || got.TeamID == nil || *got.TeamID != team.ID {
			t.Fatalf("mismatch: %+v", got)
		}
	})

	t.Run("get_not_found", func(t *testing.T) {
		_, repo, cleanup := makeStore(t)
		t.Cleanup(cleanup)
		_, err := repo.GetByID(context.Background(), 987654)
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate_team_name", func(t *testing.T) {
		_, repo, cleanup := makeStore(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		if _, err := repo.CreateTeam(ctx, model.Team{Name: "dup"}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if _, err := repo.CreateTeam(ctx, model.Team{Name: "dup"}); !errors.Is(err, repository.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("unknown_team_conflict", func(t *testing.T) {
		_, repo, cleanup := makeStore(t)
		t.Cleanup(cleanup)
		missing := int64(424242)
		_, err := repo.CreateMember(context.Background(), model.Member{Username: "x", Age: 1, TeamID: &missing})
		if !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("find_by_username", func(t *testing.T) {
		_, repo, cleanup := makeStore(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		for _, name := range []string{"member1", "member2", "member1"} {
			if _, err := repo.CreateMember(ctx, model.Member{Username: name, Age: 20}); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
		got, err := repo.FindByUsername(ctx, "member1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if len(got) != 2 || got[0].ID >= got[1].ID {
			t.Fatalf("unexpected result: %+v", got)
		}
	})
}

func (s *SpyStore) fetchPredsAt(i int) []repository.Predicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.fetchPreds) {
		return nil
	}
	return s.fetchPreds[i]
}
