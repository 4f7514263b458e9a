package conversationrepo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"workify/services/conversation-api/internal/utils/platformerrors"
)

const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
	pgQueryCanceled    = "57014"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isLockTimeout(err error) bool {
	code := pgCode(err)
	return code == pgLockNotAvailable || code == pgQueryCanceled
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func dbError(ctx context.Context, message string, err error, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, code)
}

// passThrough keeps platform errors raised inside a transaction intact.
func passThrough(ctx context.Context, message string, err error, code string) error {
	if err == nil {
		return nil
	}
	if platformerrors.GetPlatformError(err) != nil {
		return err
	}
	return dbError(ctx, message, err, code)
}
