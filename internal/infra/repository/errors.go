package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// postgresのエラーコード
const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

func isCheckViolation(err error) bool {
	return pgCode(err) == pgCheckViolation
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
