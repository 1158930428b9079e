package errx

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// PostgresErrorMessage describes Postgres related failures.
const PostgresErrorMessage = "database operation failed"

// WrapPostgres maps pgx errors to an AppError with an appropriate status code.
func WrapPostgres(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return New(err, http.StatusNotFound, NotFoundMessage)
	}

	return New(err, http.StatusBadGateway, PostgresErrorMessage)
}
