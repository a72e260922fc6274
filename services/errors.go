package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends     = errors.New("friendship already exists")
	ErrRequestExists      = errors.New("friend request already exists")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
)

// Town registry errors
var (
	ErrTownNotFound        = errors.New("town not found")
	ErrInvalidTownPassword = errors.New("invalid town update password")
	ErrInvalidTownName     = errors.New("town name must not be empty")
)

var (
	ErrInvalidDevice   = errors.New("invalid device registration")
	ErrInvalidDuration = errors.New("session duration must be between 0 and 2147483647 seconds")
	ErrInvalidGame     = errors.New("game id must not be empty")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
