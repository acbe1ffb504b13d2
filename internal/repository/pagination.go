package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/maxviazov/member-search-service/internal/model"
)

// Direction is the ordering direction of one sort key.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Order is a single (attribute, direction) sort key.
type Order struct {
	Property  model.Attribute `json:"property" validate:"required"`
	Direction Direction       `json:"direction" validate:"oneof=ASC DESC"`
}

// Pageable represents an offset/limit window plus ordering.
// Offset is a row offset, not a page index.
type Pageable struct {
	Offset int64   `json:"offset" validate:"gte=0"`
	Limit  int     `json:"limit" validate:"gt=0"`
	Sort   []Order `json:"sort,omitempty" validate:"dive"`
}

// PageNumber is the zero-based index of the page this window starts, assuming aligned offsets.
func (p Pageable) PageNumber() int {
	if p.Limit <= 0 {
		return 0
	}
	return int(p.Offset / int64(p.Limit))
}

// DefaultMemberSort orders members by username.
var DefaultMemberSort = []Order{{Property: model.AttrUsername, Direction: Asc}}

// StableSort returns the requested ordering (or DefaultMemberSort when empty) with a
// member id tie-breaker appended, so that repeated calls page through the same sequence.
func (p Pageable) StableSort() []Order {
	src := p.Sort
	if len(src) == 0 {
		src = DefaultMemberSort
	}
	out := make([]Order, 0, len(src)+1)
	hasID := false
	for _, o := range src {
		if o.Property == model.AttrMemberID {
			hasID = true
		}
		out = append(out, o)
	}
	if !hasID {
		out = append(out, Order{Property: model.AttrMemberID, Direction: Asc})
	}
	return out
}

var pageableValidator = validator.New()

// ValidatePageable rejects negative offsets, non-positive limits and unknown sort keys.
// It performs no I/O and must run before any store round-trip.
func ValidatePageable(p Pageable) error {
	if err := pageableValidator.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidPagination, strings.Join(parts, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidPagination, err)
	}
	for _, o := range p.Sort {
		if !model.IsSortable(o.Property) {
			return fmt.Errorf("%w: unknown sort property %q", ErrInvalidPagination, o.Property)
		}
	}
	return nil
}
