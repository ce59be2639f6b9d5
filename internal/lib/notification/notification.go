// Package notification sends user-facing messages through the mail queue.
// Every send is fire-and-forget: it runs in its own goroutine under a bounded
// timeout and a failure is only logged, never returned to the caller.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sl "auth_gateway/internal/lib/logger"
	"auth_gateway/internal/models"
)

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

type Notifier struct {
	log     *slog.Logger
	pub     Publisher
	timeout time.Duration
	wg      sync.WaitGroup
}

func New(log *slog.Logger, pub Publisher, timeout time.Duration) *Notifier {
	return &Notifier{
		log:     log,
		pub:     pub,
		timeout: timeout,
	}
}

func (n *Notifier) Welcome(u models.User) {
	n.dispatch(models.Message{
		Email:    u.Email,
		Username: u.Username,
		Subject:  "Welcome",
		Body:     fmt.Sprintf("Hi %s, your account is ready.", u.Username),
		Purpose:  models.PurposeWelcome,
	}, u.ID)
}

func (n *Notifier) ResetCode(u models.User, code string, ttl time.Duration) {
	n.dispatch(models.Message{
		Email:    u.Email,
		Username: u.Username,
		Subject:  "Password reset code",
		Body: fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.",
			code, int(ttl.Minutes())),
		Purpose: models.PurposeResetCode,
	}, u.ID)
}

func (n *Notifier) Banned(u models.User, reason string) {
	body := "Your account has been suspended."
	if reason != "" {
		body += " Reason: " + reason
	}

	n.dispatch(models.Message{
		Email:    u.Email,
		Username: u.Username,
		Subject:  "Account suspended",
		Body:     body,
		Purpose:  models.PurposeBanned,
	}, u.ID)
}

func (n *Notifier) Unbanned(u models.User) {
	n.dispatch(models.Message{
		Email:    u.Email,
		Username: u.Username,
		Subject:  "Account restored",
		Body:     "Your account has been restored. You can sign in again.",
		Purpose:  models.PurposeUnbanned,
	}, u.ID)
}

// Wait blocks until every dispatched message has been handed off or failed.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(msg models.Message, userID int64) {
	const op = "notification.dispatch"

	log := n.log.With(
		slog.String("op", op),
		slog.String("purpose", msg.Purpose),
		slog.Int64("uid", userID),
	)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.pub.SendMessage(ctx, msg); err != nil {
			log.Error("failed to publish notification", sl.Err(err))
			return
		}

		log.Debug("notification published")
	}()
}
