package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"habitSocialAPI/internal/apperr"
)

// DB is the part of *pgxpool.Pool the services use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// notFound turns pgx.ErrNoRows into target, leaving other errors wrapped.
func notFound(err error, target error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return target
	}
	return apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, op, err)
}
