package service

import (
	"fmt"
	"strings"

	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
)

const (
	maxUsernameLen = 50
	maxTeamNameLen = 50
	maxAge         = 200
)

// validatePageable checks the request against the service limits and fills the default sort.
func validatePageable(p repository.Pageable, maxPageSize int) (repository.Pageable, []FieldError) {
	var ferrs []FieldError
	if p.Offset < 0 {
		ferrs = append(ferrs, FieldError{Field: "offset", Message: "must be >= 0"})
	}
	switch {
	case p.Limit <= 0:
		ferrs = append(ferrs, FieldError{Field: "limit", Message: "must be > 0"})
	case maxPageSize > 0 && p.Limit > maxPageSize:
		ferrs = append(ferrs, FieldError{Field: "limit", Message: fmt.Sprintf("must be <= %d", maxPageSize)})
	}

	sort := make([]repository.Order, 0, len(p.Sort))
	for i, o := range p.Sort {
		field := fmt.Sprintf("sort[%d]", i)
		if !model.IsSortable(o.Property) {
			ferrs = append(ferrs, FieldError{Field: field + ".property", Message: "unknown sort property"})
			continue
		}
		dir, ok := normalizeDirection(o.Direction)
		if !ok {
			ferrs = append(ferrs, FieldError{Field: field + ".direction", Message: "must be ASC or DESC"})
			continue
		}
		sort = append(sort, repository.Order{Property: o.Property, Direction: dir})
	}
	if len(sort) == 0 {
		sort = append(sort, repository.DefaultMemberSort...)
	}
	return repository.Pageable{Offset: p.Offset, Limit: p.Limit, Sort: sort}, ferrs
}

// normalizeDirection accepts any casing; empty means ascending.
func normalizeDirection(d repository.Direction) (repository.Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(string(d))) {
	case "", string(repository.Asc):
		return repository.Asc, true
	case string(repository.Desc):
		return repository.Desc, true
	default:
		return "", false
	}
}

// validateCondition rejects negative age bounds. Inverted bounds are allowed and match nothing.
// Text filters need no checks: blank values simply drop out of the predicate list.
func validateCondition(c model.MemberSearchCondition) []FieldError {
	var ferrs []FieldError
	if c.AgeGoe != nil && *c.AgeGoe < 0 {
		ferrs = append(ferrs, FieldError{Field: "age_goe", Message: "must be >= 0"})
	}
	if c.AgeLoe != nil && *c.AgeLoe < 0 {
		ferrs = append(ferrs, FieldError{Field: "age_loe", Message: "must be >= 0"})
	}
	return ferrs
}

func validateName(field, v string, maxLen int) []FieldError {
	if v == "" {
		return []FieldError{{Field: field, Message: "must not be empty"}}
	}
	if ln := len([]rune(v)); ln > maxLen {
		return []FieldError{{Field: field, Message: fmt.Sprintf("length must be <= %d", maxLen)}}
	}
	return nil
}
