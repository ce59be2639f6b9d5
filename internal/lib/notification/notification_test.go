package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth_gateway/internal/lib/logger"
	"auth_gateway/internal/models"
)

type recorder struct {
	mu   sync.Mutex
	msgs []models.Message
	err  error
}

func (r *recorder) SendMessage(_ context.Context, msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, msg)
	return r.err
}

var alice = models.User{ID: 1, Username: "alice", Email: "a@x.com"}

func TestNotifierPurposes(t *testing.T) {
	rec := &recorder{}
	n := New(logger.Discard(), rec, time.Second)

	n.Welcome(alice)
	n.ResetCode(alice, "0042", 15*time.Minute)
	n.Banned(alice, "spam")
	n.Unbanned(alice)
	n.Wait()

	require.Len(t, rec.msgs, 4)

	byPurpose := make(map[string]models.Message)
	for _, m := range rec.msgs {
		assert.Equal(t, "a@x.com", m.Email)
		byPurpose[m.Purpose] = m
	}

	assert.Contains(t, byPurpose[models.PurposeResetCode].Body, "0042")
	assert.Contains(t, byPurpose[models.PurposeResetCode].Body, "15 minutes")
	assert.Contains(t, byPurpose[models.PurposeBanned].Body, "spam")
	assert.Contains(t, byPurpose, models.PurposeWelcome)
	assert.Contains(t, byPurpose, models.PurposeUnbanned)
}

func TestNotifierSwallowsPublishErrors(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	n := New(logger.Discard(), rec, time.Second)

	assert.NotPanics(t, func() {
		n.Welcome(alice)
		n.Wait()
	})
	assert.Len(t, rec.msgs, 1)
}
