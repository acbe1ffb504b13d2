// Package memory is an in-process implementation of the member store. It mirrors the
// postgres adapter's semantics (outer join to teams, NULLS LAST ascending, byte-wise
// text order as with the "C" collation of the schema) so the same contract suite runs
// against both.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	nextTeam int64
	nextMem  int64
	teams    map[int64]model.Team
	members  map[int64]model.Member
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		nextTeam: 1,
		nextMem:  1,
		teams:    map[int64]model.Team{},
		members:  map[int64]model.Member{},
		now:      time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	if err := ctx.Err(); err != nil {
		return model.Team{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.teams {
		if existing.Name == t.Name {
			return model.Team{}, repository.ErrAlreadyExists
		}
	}
	t.ID = s.nextTeam
	t.CreatedAt = s.now().UTC()
	s.nextTeam++
	s.teams[t.ID] = t
	return t, nil
}

func (s *Store) CreateMember(ctx context.Context, m model.Member) (model.Member, error) {
	if err := ctx.Err(); err != nil {
		return model.Member{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.TeamID != nil {
		if _, ok := s.teams[*m.TeamID]; !ok {
			return model.Member{}, repository.ErrConflict
		}
		id := *m.TeamID
		m.TeamID = &id
	}
	m.ID = s.nextMem
	m.CreatedAt = s.now().UTC()
	s.nextMem++
	s.members[m.ID] = m
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (model.Member, error) {
	if err := ctx.Err(); err != nil {
		return model.Member{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return model.Member{}, repository.ErrNotFound
	}
	return m, nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) ([]model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Member, 0)
	for _, m := range s.members {
		if m.Username == username {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchPage applies preds over the joined rows, orders them and cuts the window.
func (s *Store) FetchPage(ctx context.Context, preds []repository.Predicate, p repository.Pageable) ([]model.MemberTeam, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orders := p.StableSort()
	for _, o := range orders {
		if !model.IsSortable(o.Property) {
			return nil, fmt.Errorf("%w: unknown sort property %q", repository.ErrInvalidPagination, o.Property)
		}
	}

	rows, err := s.filter(preds)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j], orders) })

	if p.Offset >= int64(len(rows)) {
		return []model.MemberTeam{}, nil
	}
	end := p.Offset + int64(p.Limit)
	if end > int64(len(rows)) {
		end = int64(len(rows))
	}
	out := make([]model.MemberTeam, end-p.Offset)
	copy(out, rows[p.Offset:end])
	return out, nil
}

// Search returns every matching row in the default stable order.
func (s *Store) Search(ctx context.Context, preds []repository.Predicate) ([]model.MemberTeam, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.filter(preds)
	if err != nil {
		return nil, err
	}
	orders := repository.Pageable{}.StableSort()
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j], orders) })
	return rows, nil
}

func (s *Store) Count(ctx context.Context, preds []repository.Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows, err := s.filter(preds)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// filter is shared by FetchPage and Count: same join, same predicates.
func (s *Store) filter(preds []repository.Predicate) ([]model.MemberTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MemberTeam, 0, len(s.members))
	for _, m := range s.members {
		row := s.join(m)
		ok, err := matchAll(row, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) join(m model.Member) model.MemberTeam {
	row := model.MemberTeam{MemberID: m.ID, Username: m.Username, Age: m.Age}
	if m.TeamID == nil {
		return row
	}
	if t, ok := s.teams[*m.TeamID]; ok {
		id, name := t.ID, t.Name
		row.TeamID, row.TeamName = &id, &name
	}
	return row
}

func matchAll(row model.MemberTeam, preds []repository.Predicate) (bool, error) {
	for _, p := range preds {
		ok, err := match(row, p)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func match(row model.MemberTeam, p repository.Predicate) (bool, error) {
	v, present := value(row, p.Attribute)
	if !present {
		// NULL never satisfies a comparison
		return false, nil
	}
	c, err := compareValue(v, p.Value)
	if err != nil {
		return false, fmt.Errorf("predicate on %s: %w", p.Attribute, err)
	}
	switch p.Operator {
	case repository.OpEq:
		return c == 0, nil
	case repository.OpGoe:
		return c >= 0, nil
	case repository.OpLoe:
		return c <= 0, nil
	default:
		return false, fmt.Errorf("unsupported predicate operator %q", p.Operator)
	}
}

// value returns the attribute of row and whether it is non-NULL.
func value(row model.MemberTeam, a model.Attribute) (any, bool) {
	switch a {
	case model.AttrMemberID:
		return row.MemberID, true
	case model.AttrUsername:
		return row.Username, true
	case model.AttrAge:
		return int64(row.Age), true
	case model.AttrTeamID:
		if row.TeamID == nil {
			return nil, false
		}
		return *row.TeamID, true
	case model.AttrTeamName:
		if row.TeamName == nil {
			return nil, false
		}
		return *row.TeamName, true
	}
	return nil, false
}

func compareValue(a, b any) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare text with %T", b)
		}
		return strings.Compare(av, bv), nil
	case int64:
		bv, ok := toInt64(b)
		if !ok {
			return 0, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported value type %T", a)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// less orders like postgres: NULLS LAST for ASC, NULLS FIRST for DESC.
func less(a, b model.MemberTeam, orders []repository.Order) bool {
	for _, o := range orders {
		av, aok := value(a, o.Property)
		bv, bok := value(b, o.Property)
		desc := o.Direction == repository.Desc
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return desc
		case !bok:
			return !desc
		}
		c, err := compareValue(av, bv)
		if err != nil || c == 0 {
			continue
		}
		if desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

var (
	_ repository.MemberRepository  = (*Store)(nil)
	_ repository.MemberSearchStore = (*Store)(nil)
	_ repository.Pinger            = (*Store)(nil)
)
