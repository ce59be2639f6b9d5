package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"auth_gateway/internal/lib/autherr"
	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/lib/password"
	"auth_gateway/internal/lib/validate"
	"auth_gateway/internal/storage"
)

const resetCodeDigits = 4

// ErrInvalidResetCode covers a wrong, expired, used or unknown code alike.
var ErrInvalidResetCode = errors.New("invalid or expired code")

var errWeakPassword = errors.New("password does not meet requirements")

// ForgotPassword starts a reset for the account behind email. codeSent tells
// the caller whether a code was actually dispatched; it must not leak into
// the response.
func (a *Auth) ForgotPassword(ctx context.Context, email string) (codeSent bool, err error) {
	const op = "auth.ForgotPassword"

	log := a.log.With(slog.String("op", op))

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("reset requested for unknown email")
			return false, nil
		}

		log.Error("failed to get user", sl.Err(err))
		return false, autherr.New(autherr.KindInternal, op, err)
	}

	log = log.With(slog.Int64("uid", user.ID))

	if user.Banned {
		log.Info("reset requested for banned user")
		return false, nil
	}

	code, err := generateCode()
	if err != nil {
		log.Error("failed to generate code", sl.Err(err))
		return false, autherr.New(autherr.KindInternal, op, err)
	}

	// A new code starts with a fresh attempt budget.
	if err := a.sessions.ClearResetAttempts(ctx, user.ID); err != nil {
		log.Error("failed to reset attempt counter", sl.Err(err))
		return false, autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	if err := a.users.SetResetCode(ctx, user.ID, hashCode(code), a.now().Add(a.resetCodeTTL)); err != nil {
		log.Error("failed to store reset code", sl.Err(err))
		return false, autherr.New(autherr.KindInternal, op, err)
	}

	a.notifier.ResetCode(user, code, a.resetCodeTTL)

	log.Info("reset code issued")

	return true, nil
}

// VerifyResetCode trades a correct, unexpired code for a short-lived reset
// token. The code is single-use and every failure looks the same.
func (a *Auth) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	const op = "auth.VerifyResetCode"

	log := a.log.With(slog.String("op", op))

	invalid := autherr.New(autherr.KindValidation, op, ErrInvalidResetCode)

	if !isResetCode(code) {
		return "", invalid
	}

	user, err := a.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return "", invalid
		}

		log.Error("failed to get user", sl.Err(err))
		return "", autherr.New(autherr.KindInternal, op, err)
	}

	log = log.With(slog.Int64("uid", user.ID))

	attempts, err := a.sessions.CountResetAttempt(ctx, user.ID, a.resetCodeTTL)
	if err != nil {
		log.Error("failed to count attempt", sl.Err(err))
		return "", autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	if attempts > int64(a.resetAttempts) {
		if err := a.users.ClearResetCode(ctx, user.ID); err != nil {
			log.Error("failed to invalidate reset code", sl.Err(err))
		}

		log.Warn("reset code attempts exhausted", slog.Int64("attempts", attempts))
		return "", invalid
	}

	if err := a.users.ConsumeResetCode(ctx, user.ID, hashCode(code), a.now()); err != nil {
		if errors.Is(err, storage.ErrResetCodeMismatch) {
			log.Info("reset code rejected", slog.Int64("attempts", attempts))
			return "", invalid
		}

		log.Error("failed to consume reset code", sl.Err(err))
		return "", autherr.New(autherr.KindInternal, op, err)
	}

	if err := a.sessions.ClearResetAttempts(ctx, user.ID); err != nil {
		log.Warn("failed to reset attempt counter", sl.Err(err))
	}

	token, err := a.tokens.IssueReset(user.ID)
	if err != nil {
		log.Error("failed to issue reset token", sl.Err(err))
		return "", autherr.New(autherr.KindInternal, op, err)
	}

	if err := a.sessions.SetResetToken(ctx, user.ID, token, a.tokens.ResetTTL()); err != nil {
		log.Error("failed to store reset token", sl.Err(err))
		return "", autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	log.Info("reset code verified")

	return token, nil
}

// ResetPassword sets a new password for the holder of a live reset token.
// The token is consumed before the password changes, so it works once.
func (a *Auth) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	const op = "auth.ResetPassword"

	log := a.log.With(slog.String("op", op))

	if !validate.StrongPassword(newPassword) {
		return autherr.New(autherr.KindValidation, op, errWeakPassword)
	}

	if resetToken == "" {
		return autherr.New(autherr.KindTokenInvalid, op, errors.New("missing reset token"))
	}

	claims, err := a.tokens.ParseReset(resetToken)
	if err != nil {
		log.Info("reset token rejected", sl.Err(err))
		return autherr.New(autherr.KindOf(err), op, err)
	}

	uid, err := claims.UserID()
	if err != nil {
		return autherr.New(autherr.KindTokenInvalid, op, err)
	}

	log = log.With(slog.Int64("uid", uid))

	if err := a.sessions.ConsumeResetToken(ctx, uid, resetToken); err != nil {
		if errors.Is(err, storage.ErrResetNotFound) || errors.Is(err, storage.ErrResetMismatch) {
			log.Warn("reset token not live")
			return autherr.New(autherr.KindTokenInvalid, op, err)
		}

		log.Error("failed to consume reset token", sl.Err(err))
		return autherr.New(autherr.KindStoreUnavailable, op, err)
	}

	passHash, err := password.Hash(newPassword)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return autherr.New(autherr.KindInternal, op, err)
	}

	if err := a.users.UpdatePassword(ctx, uid, passHash); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return autherr.New(autherr.KindNotFound, op, err)
		}

		log.Error("failed to update password", sl.Err(err))
		return autherr.New(autherr.KindInternal, op, err)
	}

	log.Info("password reset")

	return nil
}

// generateCode returns a uniformly random 4-digit code; leading zeros count.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", resetCodeDigits, n.Int64()), nil
}

func isResetCode(code string) bool {
	if len(code) != resetCodeDigits {
		return false
	}

	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// ResetTTL is the lifetime of the token handed out by VerifyResetCode.
func (a *Auth) ResetTTL() time.Duration {
	return a.tokens.ResetTTL()
}
