package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/maxviazov/member-search-service/internal/config"
	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
	"github.com/maxviazov/member-search-service/internal/repository/memory"
	"github.com/maxviazov/member-search-service/internal/repository/postgres"
	"github.com/maxviazov/member-search-service/internal/service"
)

// countingStore wraps a search store and counts round-trips.
type countingStore struct {
	inner      repository.MemberSearchStore
	fetchCalls int
	countCalls int
	lastPage   repository.Pageable
}

func (c *countingStore) FetchPage(ctx context.Context, preds []repository.Predicate, p repository.Pageable) ([]model.MemberTeam, error) {
	c.fetchCalls++
	c.lastPage = p
	return c.inner.FetchPage(ctx, preds, p)
}

func (c *countingStore) Count(ctx context.Context, preds []repository.Predicate) (int64, error) {
	c.countCalls++
	return c.inner.Count(ctx, preds)
}

// fakeTx runs fn inline and records that it was used.
type fakeTx struct{ calls int }

func (f *fakeTx) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	f.calls++
	return fn(ctx)
}

var searchCfg = config.SearchConfig{DefaultPageSize: 20, MaxPageSize: 50}

func newService(t *testing.T, tx repository.TxManager) (service.MemberService, *memory.Store, *countingStore) {
	t.Helper()
	return newServiceWithWriteTx(t, tx, nil)
}

func newServiceWithWriteTx(t *testing.T, tx, writeTx repository.TxManager) (service.MemberService, *memory.Store, *countingStore) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store := memory.NewStore()
	spy := &countingStore{inner: store}
	exec, err := repository.NewPageExecutor[model.MemberTeam](spy, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), logger)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	return service.NewMemberService(store, exec, tx, writeTx, searchCfg, logger), store, spy
}

func seedMembers(t *testing.T, svc service.MemberService) {
	t.Helper()
	ctx := context.Background()
	teamA, err := svc.CreateTeam(ctx, "teamA")
	if err != nil {
		t.Fatalf("create teamA: %v", err)
	}
	teamB, err := svc.CreateTeam(ctx, "teamB")
	if err != nil {
		t.Fatalf("create teamB: %v", err)
	}
	for i := 0; i < 100; i++ {
		team := &teamA.ID
		if i%2 == 1 {
			team = &teamB.ID
		}
		if _, err := svc.CreateMember(ctx, fmt.Sprintf("member%d", i), i, team); err != nil {
			t.Fatalf("create member%d: %v", i, err)
		}
	}
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func hasField(err error, field string) bool {
	for _, f := range service.FieldErrors(err) {
		if f.Field == field {
			return true
		}
	}
	return false
}

func TestMemberService_SearchMemberPage(t *testing.T) {
	svc, _, spy := newService(t, nil)
	seedMembers(t, svc)

	cond := model.MemberSearchCondition{AgeGoe: intPtr(35), AgeLoe: intPtr(40), TeamName: strPtr("teamB")}
	page, err := svc.SearchMemberPage(context.Background(), cond, repository.Pageable{Limit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ages 35, 37, 39 are odd and in teamB
	if page.Len() != 3 || page.TotalElements() != 3 {
		t.Fatalf("expected 3 rows total 3, got %d/%d", page.Len(), page.TotalElements())
	}
	if spy.countCalls != 1 {
		t.Fatalf("full page must count once, got %d", spy.countCalls)
	}
	if got := page.Content()[0].Username; got != "member35" {
		t.Fatalf("default sort by username expected member35 first, got %s", got)
	}
	if len(spy.lastPage.Sort) == 0 || spy.lastPage.Sort[0].Property != model.AttrUsername {
		t.Fatalf("expected default sort filled in, got %+v", spy.lastPage.Sort)
	}
}

func TestMemberService_SearchMemberPage_ShortPageSkipsCount(t *testing.T) {
	svc, _, spy := newService(t, nil)
	seedMembers(t, svc)

	page, err := svc.SearchMemberPage(context.Background(), model.MemberSearchCondition{AgeGoe: intPtr(99)}, repository.Pageable{Limit: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Len() != 1 || page.TotalElements() != 1 || spy.countCalls != 0 {
		t.Fatalf("expected 1 row, total 1, no count; got %d/%d/%d", page.Len(), page.TotalElements(), spy.countCalls)
	}
}

func TestMemberService_SearchMemberPage_InvalidPagination(t *testing.T) {
	svc, _, spy := newService(t, nil)

	cases := []struct {
		name      string
		pageable  repository.Pageable
		wantField string
	}{
		{"zero limit", repository.Pageable{Limit: 0}, "limit"},
		{"above max page size", repository.Pageable{Limit: 51}, "limit"},
		{"negative offset", repository.Pageable{Offset: -1, Limit: 10}, "offset"},
		{"unknown property", repository.Pageable{Limit: 10, Sort: []repository.Order{{Property: "password"}}}, "sort[0].property"},
		{"bad direction", repository.Pageable{Limit: 10, Sort: []repository.Order{{Property: model.AttrAge, Direction: "up"}}}, "sort[0].direction"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SearchMemberPage(context.Background(), model.MemberSearchCondition{}, tc.pageable)
			if !errors.Is(err, service.ErrInvalidInput) || !errors.Is(err, repository.ErrInvalidPagination) {
				t.Fatalf("expected invalid input + invalid pagination, got %v", err)
			}
			if !hasField(err, tc.wantField) {
				t.Fatalf("expected field error for %s, got %+v", tc.wantField, service.FieldErrors(err))
			}
		})
	}
	if spy.fetchCalls != 0 || spy.countCalls != 0 {
		t.Fatalf("store must not be touched, got fetch=%d count=%d", spy.fetchCalls, spy.countCalls)
	}
}

func TestMemberService_SearchMemberPage_LowercaseDirection(t *testing.T) {
	svc, _, _ := newService(t, nil)
	seedMembers(t, svc)

	page, err := svc.SearchMemberPage(context.Background(), model.MemberSearchCondition{},
		repository.Pageable{Limit: 1, Sort: []repository.Order{{Property: model.AttrAge, Direction: "desc"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := page.Content()[0].Age; got != 99 {
		t.Fatalf("expected oldest member first, got age %d", got)
	}
}

func TestMemberService_SearchMemberPage_NegativeAgeBound(t *testing.T) {
	svc, _, _ := newService(t, nil)
	_, err := svc.SearchMemberPage(context.Background(), model.MemberSearchCondition{AgeLoe: intPtr(-1)}, repository.Pageable{Limit: 10})
	if !errors.Is(err, service.ErrInvalidInput) || errors.Is(err, repository.ErrInvalidPagination) {
		t.Fatalf("expected plain invalid input, got %v", err)
	}
	if !hasField(err, "age_loe") {
		t.Fatalf("expected age_loe field error, got %+v", service.FieldErrors(err))
	}
}

func TestMemberService_SearchMemberPage_RunsInsideTx(t *testing.T) {
	tx := &fakeTx{}
	svc, _, _ := newService(t, tx)
	if _, err := svc.SearchMemberPage(context.Background(), model.MemberSearchCondition{}, repository.Pageable{Limit: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.calls != 1 {
		t.Fatalf("expected one transaction, got %d", tx.calls)
	}
}

func TestMemberService_CreateMember_Validation(t *testing.T) {
	svc, _, _ := newService(t, nil)
	unknown := int64(77)

	cases := []struct {
		name      string
		username  string
		age       int
		teamID    *int64
		wantField string
	}{
		{"empty username", "  ", 10, nil, "username"},
		{"too long", string(make([]rune, 51)), 10, nil, "username"},
		{"negative age", "member1", -1, nil, "age"},
		{"bad team id", "member1", 10, new(int64), "team_id"},
		{"unknown team", "member1", 10, &unknown, "team_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateMember(context.Background(), tc.username, tc.age, tc.teamID)
			if !errors.Is(err, service.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !hasField(err, tc.wantField) {
				t.Fatalf("expected field error for %s, got %+v", tc.wantField, service.FieldErrors(err))
			}
		})
	}
}

func TestMemberService_CreateTeam_DuplicatePropagates(t *testing.T) {
	svc, _, _ := newService(t, nil)
	if _, err := svc.CreateTeam(context.Background(), "teamA"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.CreateTeam(context.Background(), " teamA ")
	if !errors.Is(err, repository.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMemberService_Lookups(t *testing.T) {
	svc, _, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.GetMember(ctx, 0); !errors.Is(err, service.ErrInvalidInput) {
		t.Fatalf("expected invalid input for id 0, got %v", err)
	}
	if _, err := svc.GetMember(ctx, 5); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	created, err := svc.CreateMember(ctx, "member1", 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.GetMember(ctx, created.ID)
	if err != nil || got.Username != "member1" {
		t.Fatalf("get member: %+v %v", got, err)
	}
	list, err := svc.FindMembersByUsername(ctx, "member1")
	if err != nil || len(list) != 1 {
		t.Fatalf("find by username: %+v %v", list, err)
	}
}

func TestMemberService_DefaultPageable(t *testing.T) {
	svc, _, _ := newService(t, nil)
	p := svc.DefaultPageable()
	if p.Limit != searchCfg.DefaultPageSize || p.Offset != 0 {
		t.Fatalf("unexpected default pageable %+v", p)
	}
	p.Sort[0].Direction = repository.Desc
	if repository.DefaultMemberSort[0].Direction != repository.Asc {
		t.Fatalf("default sort must not be shared")
	}
}

func TestMemberService_SearchMembers(t *testing.T) {
	svc, _, spy := newService(t, nil)
	seedMembers(t, svc)

	got, err := svc.SearchMembers(context.Background(), model.MemberSearchCondition{AgeGoe: intPtr(35), AgeLoe: intPtr(40), TeamName: strPtr("teamB")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"member35", "member37", "member39"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %+v", want, got)
	}
	for i, r := range got {
		if r.Username != want[i] || r.TeamName == nil || *r.TeamName != "teamB" {
			t.Fatalf("row %d: expected %s in teamB, got %+v", i, want[i], r)
		}
	}
	if spy.fetchCalls != 0 || spy.countCalls != 0 {
		t.Fatalf("unpaged search must not page, got fetch=%d count=%d", spy.fetchCalls, spy.countCalls)
	}

	all, err := svc.SearchMembers(context.Background(), model.MemberSearchCondition{Username: strPtr(" ")})
	if err != nil || len(all) != 100 {
		t.Fatalf("blank username must match all: %d %v", len(all), err)
	}
}

func TestMemberService_SearchMembers_NegativeAgeBound(t *testing.T) {
	svc, _, _ := newService(t, nil)
	_, err := svc.SearchMembers(context.Background(), model.MemberSearchCondition{AgeGoe: intPtr(-5)})
	if !errors.Is(err, service.ErrInvalidInput) || !hasField(err, "age_goe") {
		t.Fatalf("expected age_goe field error, got %v", err)
	}
}

func TestMemberService_CreateTeamWithMembers(t *testing.T) {
	tx := &fakeTx{}
	svc, _, _ := newServiceWithWriteTx(t, nil, tx)
	ctx := context.Background()

	team, members, err := svc.CreateTeamWithMembers(ctx, " teamC ", []service.NewMember{{Username: "member1", Age: 10}, {Username: " member2 ", Age: 20}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.calls != 1 {
		t.Fatalf("expected one write transaction, got %d", tx.calls)
	}
	if team.Name != "teamC" || len(members) != 2 || members[1].Username != "member2" {
		t.Fatalf("unexpected result: %+v %+v", team, members)
	}
	for _, m := range members {
		if m.TeamID == nil || *m.TeamID != team.ID {
			t.Fatalf("member %s not attached to team %d", m.Username, team.ID)
		}
	}

	got, err := svc.SearchMembers(ctx, model.MemberSearchCondition{TeamName: strPtr("teamC")})
	if err != nil || len(got) != 2 {
		t.Fatalf("expected both members searchable: %+v %v", got, err)
	}
}

func TestMemberService_CreateTeamWithMembers_Validation(t *testing.T) {
	tx := &fakeTx{}
	svc, _, _ := newServiceWithWriteTx(t, nil, tx)

	_, _, err := svc.CreateTeamWithMembers(context.Background(), "", []service.NewMember{{Username: "ok", Age: 1}, {Username: "", Age: -1}})
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	for _, field := range []string{"name", "members[1].username", "members[1].age"} {
		if !hasField(err, field) {
			t.Fatalf("expected field error for %s, got %+v", field, service.FieldErrors(err))
		}
	}
	if tx.calls != 0 {
		t.Fatalf("invalid input must not open a transaction")
	}
}

func TestMemberService_CreateTeamWithMembers_RollsBackOnFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO teams \(name\) VALUES \(\$1\)`).
		WithArgs("teamA").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).AddRow(int64(1), "teamA", time.Now()))
	mock.ExpectQuery(`INSERT INTO members \(username, age, team_id\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs("member1", 10, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "08006"})
	mock.ExpectRollback()

	logger := zerolog.New(io.Discard)
	exec, err := repository.NewPageExecutor[model.MemberTeam](postgres.NewMemberSearchStore(mock), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), logger)
	if err != nil {
		t.Fatalf("executor: %v", err)
	}
	svc := service.NewMemberService(postgres.NewMemberRepository(mock), exec, nil, postgres.NewTxManager(mock), searchCfg, logger)

	_, _, err = svc.CreateTeamWithMembers(context.Background(), "teamA", []service.NewMember{{Username: "member1", Age: 10}})
	if !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
