package repository

import (
	"strings"

	"github.com/maxviazov/member-search-service/internal/model"
)

// Operator is the comparison a Predicate applies to its attribute.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGoe Operator = "goe"
	OpLoe Operator = "loe"
)

// Predicate is one attribute-level condition. A predicate list is read as a conjunction.
type Predicate struct {
	Attribute model.Attribute
	Operator  Operator
	Value     any
}

// ComposeMemberPredicates turns a sparse condition into the ordered list of active predicates:
// text filters first (username, team name), then the age lower and upper bounds.
// Blank text counts as absent; a zero age bound does not.
func ComposeMemberPredicates(c model.MemberSearchCondition) []Predicate {
	preds := make([]Predicate, 0, 4)
	if v, ok := hasText(c.Username); ok {
		preds = append(preds, Predicate{Attribute: model.AttrUsername, Operator: OpEq, Value: v})
	}
	if v, ok := hasText(c.TeamName); ok {
		preds = append(preds, Predicate{Attribute: model.AttrTeamName, Operator: OpEq, Value: v})
	}
	if c.AgeGoe != nil {
		preds = append(preds, Predicate{Attribute: model.AttrAge, Operator: OpGoe, Value: *c.AgeGoe})
	}
	if c.AgeLoe != nil {
		preds = append(preds, Predicate{Attribute: model.AttrAge, Operator: OpLoe, Value: *c.AgeLoe})
	}
	return preds
}

func hasText(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}
