// Package service holds business logic orchestration across repositories.
// Kept intentionally lean: only use-case coordination, validation and domain error shaping.
package service

import (
	"context"
	"errors"

	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
)

// ErrInvalidInput is the marker error for aggregated validation failures.
// Field-level details are retrieved via FieldErrors(err).
var ErrInvalidInput = errors.New("invalid input")

// FieldError describes a single invalid field in a client request.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// invalidInputError aggregates multiple FieldError instances and unwraps to ErrInvalidInput.
// A cause (e.g. repository.ErrInvalidPagination) is kept in the chain when present.
type invalidInputError struct {
	fields []FieldError
	cause  error
}

func (e *invalidInputError) Error() string        { return ErrInvalidInput.Error() }
func (e *invalidInputError) Fields() []FieldError { return e.fields }

func (e *invalidInputError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrInvalidInput}
	}
	return []error{ErrInvalidInput, e.cause}
}

// newInvalidInput builds an aggregated validation error if any field errors are present.
func newInvalidInput(fe []FieldError) error {
	if len(fe) == 0 { // protective case
		return nil
	}
	return &invalidInputError{fields: fe}
}

// newInvalidPagination is newInvalidInput for paging fields.
func newInvalidPagination(fe []FieldError) error {
	if len(fe) == 0 {
		return nil
	}
	return &invalidInputError{fields: fe, cause: repository.ErrInvalidPagination}
}

// FieldErrors extracts field errors from an aggregated validation error.
func FieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var ie *invalidInputError
	if errors.As(err, &ie) {
		return ie.Fields()
	}
	return nil
}

// NewMember is one member to create alongside its team.
type NewMember struct {
	Username string
	Age      int
}

// MemberService defines member and team use cases, including the paged member search.
type MemberService interface {
	CreateTeam(ctx context.Context, name string) (model.Team, error)
	CreateMember(ctx context.Context, username string, age int, teamID *int64) (model.Member, error)
	// CreateTeamWithMembers creates a team and its members atomically.
	CreateTeamWithMembers(ctx context.Context, teamName string, members []NewMember) (model.Team, []model.Member, error)
	GetMember(ctx context.Context, id int64) (model.Member, error)
	FindMembersByUsername(ctx context.Context, username string) ([]model.Member, error)
	// SearchMemberPage returns one page of member/team rows matching cond.
	SearchMemberPage(ctx context.Context, cond model.MemberSearchCondition, p repository.Pageable) (repository.Page[model.MemberTeam], error)
	// SearchMembers returns every member/team row matching cond, ordered by username.
	SearchMembers(ctx context.Context, cond model.MemberSearchCondition) ([]model.MemberTeam, error)
	// DefaultPageable is the first page at the configured default size and sort.
	DefaultPageable() repository.Pageable
}
