package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Domain-level errors I prefer to bubble up from repository implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
)

// Paging errors. ErrInvalidPagination is raised before any store round-trip;
// the inconsistency errors mark defects and are never corrected silently.
var (
	ErrInvalidPagination = errors.New("invalid pagination request")
	ErrInconsistentCount = errors.New("inconsistent count")
	ErrInconsistentPage  = errors.New("inconsistent page")
)

// Store failure classes. MapPgError joins them with the driver error, so the
// original error (and any context cancellation) stays reachable via errors.Is/As.
var (
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrStoreTimeout     = errors.New("store timeout")
)

// MapPgError translates common Postgres error codes to domain errors.
// I only map what I expect to handle explicitly at higher layers; everything else passes through.
func MapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreTimeout) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return errors.Join(ErrStoreTimeout, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errors.Join(ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation:
			return ErrAlreadyExists
		case pgErr.Code == pgerrcode.ForeignKeyViolation:
			return ErrConflict
		case pgErr.Code == pgerrcode.QueryCanceled:
			return errors.Join(ErrStoreTimeout, err)
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.TooManyConnections:
			return errors.Join(ErrStoreUnavailable, err)
		}
	}
	return err
}
