package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// columns maps projection attributes to SQL expressions over "members m LEFT JOIN teams t".
var columns = map[model.Attribute]string{
	model.AttrMemberID: "m.id",
	model.AttrUsername: "m.username",
	model.AttrAge:      "m.age",
	model.AttrTeamID:   "t.id",
	model.AttrTeamName: "t.name",
}

var projection = []string{
	"m.id AS member_id",
	"m.username",
	"m.age",
	"t.id AS team_id",
	"t.name AS team_name",
}

type memberSearchStore struct{ db DB }

// NewMemberSearchStore returns the postgres PageStore for member/team projections.
func NewMemberSearchStore(db DB) repository.MemberSearchStore {
	return &memberSearchStore{db: db}
}

// from is the single source of the join shape and WHERE clause. Content and count
// both start here, so they can't drift apart.
func (s *memberSearchStore) from(preds []repository.Predicate, cols ...string) (sq.SelectBuilder, error) {
	b := psql.Select(cols...).
		From("members m").
		LeftJoin("teams t ON t.id = m.team_id")
	if len(preds) == 0 {
		return b, nil
	}
	where := make(sq.And, 0, len(preds))
	for _, p := range preds {
		cond, err := toSqlizer(p)
		if err != nil {
			return b, err
		}
		where = append(where, cond)
	}
	return b.Where(where), nil
}

func toSqlizer(p repository.Predicate) (sq.Sqlizer, error) {
	col, ok := columns[p.Attribute]
	if !ok {
		return nil, fmt.Errorf("unsupported predicate attribute %q", p.Attribute)
	}
	switch p.Operator {
	case repository.OpEq:
		return sq.Eq{col: p.Value}, nil
	case repository.OpGoe:
		return sq.GtOrEq{col: p.Value}, nil
	case repository.OpLoe:
		return sq.LtOrEq{col: p.Value}, nil
	default:
		return nil, fmt.Errorf("unsupported predicate operator %q", p.Operator)
	}
}

func orderBy(orders []repository.Order) ([]string, error) {
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		col, ok := columns[o.Property]
		if !ok {
			return nil, fmt.Errorf("%w: unknown sort property %q", repository.ErrInvalidPagination, o.Property)
		}
		dir := strings.ToUpper(string(o.Direction))
		if dir != string(repository.Desc) {
			dir = string(repository.Asc)
		}
		out = append(out, col+" "+dir)
	}
	return out, nil
}

func (s *memberSearchStore) FetchPage(ctx context.Context, preds []repository.Predicate, p repository.Pageable) ([]model.MemberTeam, error) {
	if err := ensureDB(s.db); err != nil {
		return nil, err
	}
	order, err := orderBy(p.StableSort())
	if err != nil {
		return nil, err
	}
	b, err := s.from(preds, projection...)
	if err != nil {
		return nil, err
	}
	query, args, err := b.OrderBy(order...).
		Limit(uint64(p.Limit)).
		Offset(uint64(p.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build content query: %w", err)
	}
	return s.scan(ctx, query, args, p.Limit)
}

// all returns every matching row in the default stable order, without a window.
func (s *memberSearchStore) all(ctx context.Context, preds []repository.Predicate) ([]model.MemberTeam, error) {
	if err := ensureDB(s.db); err != nil {
		return nil, err
	}
	order, err := orderBy(repository.Pageable{}.StableSort())
	if err != nil {
		return nil, err
	}
	b, err := s.from(preds, projection...)
	if err != nil {
		return nil, err
	}
	query, args, err := b.OrderBy(order...).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}
	return s.scan(ctx, query, args, 0)
}

func (s *memberSearchStore) scan(ctx context.Context, query string, args []any, sizeHint int) ([]model.MemberTeam, error) {
	rows, err := getQ(ctx, s.db).Query(ctx, query, args...)
	if err != nil {
		return nil, repository.MapPgError(err)
	}
	defer rows.Close()

	out := make([]model.MemberTeam, 0, sizeHint)
	if err := pgxscan.ScanAll(&out, rows); err != nil {
		return nil, repository.MapPgError(err)
	}
	return out, nil
}

func (s *memberSearchStore) Count(ctx context.Context, preds []repository.Predicate) (int64, error) {
	if err := ensureDB(s.db); err != nil {
		return 0, err
	}
	b, err := s.from(preds, "COUNT(*)")
	if err != nil {
		return 0, err
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var total int64
	if err := getQ(ctx, s.db).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, repository.MapPgError(err)
	}
	return total, nil
}

var _ repository.MemberSearchStore = (*memberSearchStore)(nil)
