package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
)

type memberRepository struct{ db DB }

func NewMemberRepository(db DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	if err := ensureDB(r.db); err != nil {
		return model.Team{}, err
	}
	row := getQ(ctx, r.db).QueryRow(ctx,
		`INSERT INTO teams (name) VALUES ($1)
		 RETURNING id, name, created_at`,
		t.Name,
	)
	var out model.Team
	if err := row.Scan(&out.ID, &out.Name, &out.CreatedAt); err != nil {
		return model.Team{}, repository.MapPgError(err)
	}
	return out, nil
}

func (r *memberRepository) CreateMember(ctx context.Context, m model.Member) (model.Member, error) {
	if err := ensureDB(r.db); err != nil {
		return model.Member{}, err
	}
	row := getQ(ctx, r.db).QueryRow(ctx,
		`INSERT INTO members (username, age, team_id) VALUES ($1, $2, $3)
		 RETURNING id, username, age, team_id, created_at`,
		m.Username, m.Age, m.TeamID,
	)
	var out model.Member
	if err := row.Scan(&out.ID, &out.Username, &out.Age, &out.TeamID, &out.CreatedAt); err != nil {
		return model.Member{}, repository.MapPgError(err)
	}
	return out, nil
}

func (r *memberRepository) GetByID(ctx context.Context, id int64) (model.Member, error) {
	if err := ensureDB(r.db); err != nil {
		return model.Member{}, err
	}
	row := getQ(ctx, r.db).QueryRow(ctx,
		`SELECT id, username, age, team_id, created_at FROM members WHERE id = $1`, id,
	)
	var out model.Member
	if err := row.Scan(&out.ID, &out.Username, &out.Age, &out.TeamID, &out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Member{}, repository.ErrNotFound
		}
		return model.Member{}, repository.MapPgError(err)
	}
	return out, nil
}

func (r *memberRepository) FindByUsername(ctx context.Context, username string) ([]model.Member, error) {
	if err := ensureDB(r.db); err != nil {
		return nil, err
	}
	rows, err := getQ(ctx, r.db).Query(ctx,
		`SELECT id, username, age, team_id, created_at
		 FROM members WHERE username = $1
		 ORDER BY id`, username,
	)
	if err != nil {
		return nil, repository.MapPgError(err)
	}
	defer rows.Close()

	out := make([]model.Member, 0)
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.ID, &m.Username, &m.Age, &m.TeamID, &m.CreatedAt); err != nil {
			return nil, repository.MapPgError(err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, repository.MapPgError(err)
	}
	return out, nil
}

// Search is the unpaged member/team search. It shares the join, WHERE and ordering
// with the paged store.
func (r *memberRepository) Search(ctx context.Context, preds []repository.Predicate) ([]model.MemberTeam, error) {
	return (&memberSearchStore{db: r.db}).all(ctx, preds)
}

var _ repository.MemberRepository = (*memberRepository)(nil)
