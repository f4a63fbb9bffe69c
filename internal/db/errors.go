package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common database errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflicts with an existing row")
)

const uniqueViolation = "23505"

// Translate maps driver errors onto the package sentinels. Other errors are
// returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(ErrConflict, err)
	}
	return err
}
