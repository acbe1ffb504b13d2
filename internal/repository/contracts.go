package repository

import (
	"context"

	"github.com/maxviazov/member-search-service/internal/model"
)

// Pinger represents a minimal readiness check capability.
// I use it to decouple health checks from storage implementation details.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TxFunc is the unit of work executed within a transaction boundary.
// I pass context through so nested calls can honor cancellations and deadlines.
type TxFunc func(ctx context.Context) error

// TxManager abstracts transactional execution for repositories that support it.
// I prefer a single entry point to keep transaction boundaries explicit and testable.
type TxManager interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

// PageStore is the only capability the paging core needs from storage: a filtered,
// ordered, offset/limited fetch and a filtered count. Both take the same predicate list
// and must apply it over the same join shape.
type PageStore[T any] interface {
	FetchPage(ctx context.Context, preds []Predicate, p Pageable) ([]T, error)
	Count(ctx context.Context, preds []Predicate) (int64, error)
}

// MemberSearchStore is the member/team flavour of PageStore.
type MemberSearchStore = PageStore[model.MemberTeam]

// MemberRepository declares persistence operations for members and teams.
// I return domain models and surface domain errors from errors.go rather than PG codes.
type MemberRepository interface {
	CreateTeam(ctx context.Context, t model.Team) (model.Team, error)
	CreateMember(ctx context.Context, m model.Member) (model.Member, error)
	GetByID(ctx context.Context, id int64) (model.Member, error)
	// FindByUsername returns every member whose username matches exactly, ordered by id.
	FindByUsername(ctx context.Context, username string) ([]model.Member, error)
	// Search returns every member/team row matching preds, in the default stable order.
	// It is the unpaged sibling of PageStore.FetchPage and applies the same join.
	Search(ctx context.Context, preds []Predicate) ([]model.MemberTeam, error)
}
