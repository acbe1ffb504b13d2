package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maxviazov/member-search-service/internal/config"
	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
	"github.com/rs/zerolog"
)

// memberService holds member use-case logic: validation + orchestration, no SQL details.
type memberService struct {
	members repository.MemberRepository
	search  *repository.PageExecutor[model.MemberTeam]
	tx      repository.TxManager
	writeTx repository.TxManager
	cfg     config.SearchConfig
	log     zerolog.Logger
}

// NewMemberService wires the member use cases. tx may be nil; when set, each search runs
// its content and count queries inside one transaction from it. writeTx may be nil too,
// in which case multi-row writes run without a transaction.
func NewMemberService(
	members repository.MemberRepository,
	search *repository.PageExecutor[model.MemberTeam],
	tx repository.TxManager,
	writeTx repository.TxManager,
	cfg config.SearchConfig,
	logger zerolog.Logger,
) MemberService {
	l := logger.With().Str("module", "service").Str("component", "member").Logger()
	return &memberService{members: members, search: search, tx: tx, writeTx: writeTx, cfg: cfg, log: l}
}

func within(ctx context.Context, tx repository.TxManager, fn repository.TxFunc) error {
	if tx == nil {
		return fn(ctx)
	}
	return tx.WithinTx(ctx, fn)
}

func (s *memberService) CreateTeam(ctx context.Context, name string) (model.Team, error) {
	start := time.Now()
	original := name
	name = strings.TrimSpace(name)

	if err := newInvalidInput(validateName("name", name, maxTeamNameLen)); err != nil {
		s.log.Debug().Str("name_raw", original).Msg("team validation failed")
		return model.Team{}, err
	}

	out, err := s.members.CreateTeam(ctx, model.Team{Name: name})
	if err != nil {
		// Repository surfaces domain-level errors already, do not wrap.
		s.log.Error().Err(err).Str("name", name).Msg("create team failed")
		return model.Team{}, err
	}
	s.log.Info().Dur("took", time.Since(start)).Int64("team_id", out.ID).Msg("team created")
	return out, nil
}

func validateMember(field, username string, age int) []FieldError {
	ferrs := validateName(field+"username", username, maxUsernameLen)
	if age < 0 || age > maxAge {
		ferrs = append(ferrs, FieldError{Field: field + "age", Message: "must be between 0 and 200"})
	}
	return ferrs
}

func (s *memberService) CreateMember(ctx context.Context, username string, age int, teamID *int64) (model.Member, error) {
	start := time.Now()
	username = strings.TrimSpace(username)

	ferrs := validateMember("", username, age)
	if teamID != nil && *teamID <= 0 {
		ferrs = append(ferrs, FieldError{Field: "team_id", Message: "must be > 0"})
	}
	if err := newInvalidInput(ferrs); err != nil {
		s.log.Debug().Interface("field_errors", ferrs).Msg("member validation failed")
		return model.Member{}, err
	}

	out, err := s.members.CreateMember(ctx, model.Member{Username: username, Age: age, TeamID: teamID})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Member{}, newInvalidInput([]FieldError{{Field: "team_id", Message: "team does not exist"}})
		}
		s.log.Error().Err(err).Str("username", username).Msg("create member failed")
		return model.Member{}, err
	}
	s.log.Info().Dur("took", time.Since(start)).Int64("member_id", out.ID).Msg("member created")
	return out, nil
}

func (s *memberService) CreateTeamWithMembers(ctx context.Context, teamName string, members []NewMember) (model.Team, []model.Member, error) {
	start := time.Now()
	teamName = strings.TrimSpace(teamName)

	ferrs := validateName("name", teamName, maxTeamNameLen)
	in := make([]model.Member, len(members))
	for i, m := range members {
		username := strings.TrimSpace(m.Username)
		ferrs = append(ferrs, validateMember(fmt.Sprintf("members[%d].", i), username, m.Age)...)
		in[i] = model.Member{Username: username, Age: m.Age}
	}
	if err := newInvalidInput(ferrs); err != nil {
		s.log.Debug().Interface("field_errors", ferrs).Msg("team with members validation failed")
		return model.Team{}, nil, err
	}

	var (
		team    model.Team
		created []model.Member
	)
	err := within(ctx, s.writeTx, func(ctx context.Context) error {
		var err error
		team, err = s.members.CreateTeam(ctx, model.Team{Name: teamName})
		if err != nil {
			return err
		}
		created = make([]model.Member, 0, len(in))
		for _, m := range in {
			m.TeamID = &team.ID
			out, err := s.members.CreateMember(ctx, m)
			if err != nil {
				return err
			}
			created = append(created, out)
		}
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("name", teamName).Int("members", len(in)).Msg("create team with members failed")
		return model.Team{}, nil, err
	}
	s.log.Info().Dur("took", time.Since(start)).Int64("team_id", team.ID).Int("members", len(created)).Msg("team with members created")
	return team, created, nil
}

func (s *memberService) GetMember(ctx context.Context, id int64) (model.Member, error) {
	if id <= 0 {
		return model.Member{}, newInvalidInput([]FieldError{{Field: "id", Message: "must be > 0"}})
	}
	return s.members.GetByID(ctx, id)
}

func (s *memberService) FindMembersByUsername(ctx context.Context, username string) ([]model.Member, error) {
	username = strings.TrimSpace(username)
	if err := newInvalidInput(validateName("username", username, maxUsernameLen)); err != nil {
		return nil, err
	}
	out, err := s.members.FindByUsername(ctx, username)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("find members by username failed")
		return nil, err
	}
	return out, nil
}

func (s *memberService) SearchMemberPage(ctx context.Context, cond model.MemberSearchCondition, p repository.Pageable) (repository.Page[model.MemberTeam], error) {
	start := time.Now()
	p, ferrs := validatePageable(p, s.cfg.MaxPageSize)
	if err := newInvalidPagination(ferrs); err != nil {
		s.log.Debug().Interface("field_errors", ferrs).Msg("search pagination rejected")
		return repository.Page[model.MemberTeam]{}, err
	}
	if err := newInvalidInput(validateCondition(cond)); err != nil {
		return repository.Page[model.MemberTeam]{}, err
	}

	preds := repository.ComposeMemberPredicates(cond)

	var page repository.Page[model.MemberTeam]
	run := func(ctx context.Context) error {
		var err error
		page, err = s.search.Execute(ctx, preds, p)
		return err
	}

	if err := within(ctx, s.tx, run); err != nil {
		s.log.Error().Err(err).Int64("offset", p.Offset).Int("limit", p.Limit).Int("predicates", len(preds)).Msg("member search failed")
		return repository.Page[model.MemberTeam]{}, err
	}

	s.log.Debug().
		Dur("took", time.Since(start)).
		Int("content", page.Len()).
		Int64("total", page.TotalElements()).
		Msg("member search done")
	return page, nil
}

func (s *memberService) SearchMembers(ctx context.Context, cond model.MemberSearchCondition) ([]model.MemberTeam, error) {
	if err := newInvalidInput(validateCondition(cond)); err != nil {
		return nil, err
	}
	preds := repository.ComposeMemberPredicates(cond)
	out, err := s.members.Search(ctx, preds)
	if err != nil {
		s.log.Error().Err(err).Int("predicates", len(preds)).Msg("member search failed")
		return nil, err
	}
	return out, nil
}

func (s *memberService) DefaultPageable() repository.Pageable {
	sort := make([]repository.Order, len(repository.DefaultMemberSort))
	copy(sort, repository.DefaultMemberSort)
	return repository.Pageable{Offset: 0, Limit: s.cfg.DefaultPageSize, Sort: sort}
}
