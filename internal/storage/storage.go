package storage

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrResetCodeMismatch = errors.New("reset code mismatch or expired")

	ErrCacheUnavailable = errors.New("session cache unavailable")
	ErrRefreshNotFound  = errors.New("refresh token not found")
	ErrRefreshMismatch  = errors.New("refresh token mismatch")
	ErrResetNotFound    = errors.New("reset token not found")
	ErrResetMismatch    = errors.New("reset token mismatch")
)
