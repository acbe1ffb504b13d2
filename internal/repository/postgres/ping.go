package postgres

import (
	"context"

	"github.com/maxviazov/member-search-service/internal/repository"
)

type pinger struct{ db DB }

// NewPinger adapts the pool to the repository.Pinger interface.
func NewPinger(db DB) repository.Pinger { return &pinger{db: db} }

func (p *pinger) Ping(ctx context.Context) error {
	if err := ensureDB(p.db); err != nil {
		return err
	}
	return repository.MapPgError(p.db.Ping(ctx))
}
