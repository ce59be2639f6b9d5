package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth_gateway/internal/lib/autherr"
	"auth_gateway/internal/lib/jwt"
	"auth_gateway/internal/lib/logger"
	"auth_gateway/internal/models"
	"auth_gateway/internal/storage/memory"
	redisstore "auth_gateway/internal/storage/redis"
)

const strongPassword = "P@ssw0rd1"

type notified struct {
	purpose string
	user    models.User
	code    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notified
}

func (f *fakeNotifier) record(n notified) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
}

func (f *fakeNotifier) Welcome(u models.User) {
	f.record(notified{purpose: models.PurposeWelcome, user: u})
}

func (f *fakeNotifier) ResetCode(u models.User, code string, _ time.Duration) {
	f.record(notified{purpose: models.PurposeResetCode, user: u, code: code})
}

func (f *fakeNotifier) Banned(u models.User, _ string) {
	f.record(notified{purpose: models.PurposeBanned, user: u})
}

func (f *fakeNotifier) Unbanned(u models.User) {
	f.record(notified{purpose: models.PurposeUnbanned, user: u})
}

func (f *fakeNotifier) last(purpose string) (notified, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].purpose == purpose {
			return f.sent[i], true
		}
	}
	return notified{}, false
}

type fakeSockets struct {
	mu           sync.Mutex
	disconnected []int64
}

func (f *fakeSockets) DisconnectUser(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, userID)
	return 1
}

type fixture struct {
	auth     *Auth
	users    *memory.UserRepo
	sessions *redisstore.SessionStore
	tokens   *jwt.Manager
	notifier *fakeNotifier
	sockets  *fakeSockets
	mr       *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := jwt.New(jwt.Config{
		Issuer:        "test",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		ResetSecret:   "reset-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		ResetTTL:      5 * time.Minute,
	})
	require.NoError(t, err)

	f := &fixture{
		users:    memory.New(),
		sessions: redisstore.NewWithClient(client, time.Second),
		tokens:   tokens,
		notifier: &fakeNotifier{},
		sockets:  &fakeSockets{},
		mr:       mr,
	}

	f.auth = New(logger.Discard(), f.users, f.sessions, f.tokens, f.notifier, f.sockets, Options{
		ResetCodeTTL:  15 * time.Minute,
		ResetAttempts: 5,
	})

	return f
}

func (f *fixture) register(t *testing.T, username, email string) (models.User, models.TokenPair) {
	t.Helper()

	u, pair, err := f.auth.Register(context.Background(), username, email, strongPassword)
	require.NoError(t, err)

	return u, pair
}

func requireKind(t *testing.T, want autherr.Kind, err error) {
	t.Helper()

	require.Error(t, err)
	assert.Equal(t, want.String(), autherr.KindOf(err).String(), err.Error())
}

func TestRegisterDuplicateEmailIgnoresCase(t *testing.T) {
	f := newFixture(t)

	u, pair := f.register(t, "alice", "a@x.com")
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEmpty(t, pair.AccessToken)

	stored, err := f.sessions.GetRefresh(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, stored)

	welcome, ok := f.notifier.last(models.PurposeWelcome)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", welcome.user.Email)

	_, _, err = f.auth.Register(context.Background(), "bob", "A@X.COM", strongPassword)
	requireKind(t, autherr.KindDuplicateAccount, err)

	_, _, err = f.auth.Register(context.Background(), "ALICE", "b@x.com", strongPassword)
	requireKind(t, autherr.KindDuplicateAccount, err)
}

func TestLoginLogoutRevokesAccessToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice", "a@x.com")

	_, pair, err := f.auth.Login(ctx, "alice", strongPassword)
	require.NoError(t, err)

	id, err := f.auth.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)

	require.NoError(t, f.auth.Logout(ctx, pair.AccessToken, pair.RefreshToken))

	// Still cryptographically valid, but revoked.
	_, err = f.tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, pair.AccessToken)
	requireKind(t, autherr.KindTokenRevoked, err)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	requireKind(t, autherr.KindTokenInvalid, err)
}

func TestLoginByEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com")

	u, _, err := f.auth.Login(context.Background(), "A@x.com", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com")

	_, _, unknownErr := f.auth.Login(context.Background(), "nobody", strongPassword)
	requireKind(t, autherr.KindInvalidCredentials, unknownErr)

	_, _, wrongErr := f.auth.Login(context.Background(), "alice", "wrong-pass1")
	requireKind(t, autherr.KindInvalidCredentials, wrongErr)

	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginBannedUser(t *testing.T) {
	f := newFixture(t)
	u, _ := f.register(t, "alice", "a@x.com")
	require.NoError(t, f.users.SetBanStatus(context.Background(), u.ID, true, "spam"))

	_, _, err := f.auth.Login(context.Background(), "alice", strongPassword)
	requireKind(t, autherr.KindUserBanned, err)
}

func TestLoginAbortsWhenSessionStoreIsDown(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "a@x.com")
	f.mr.Close()

	_, pair, err := f.auth.Login(context.Background(), "alice", strongPassword)
	requireKind(t, autherr.KindStoreUnavailable, err)
	assert.Empty(t, pair.AccessToken)
}

func TestRegisterKeepsAccountWhenSessionStoreIsDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mr.Close()

	u, pair, err := f.auth.Register(ctx, "alice", "a@x.com", strongPassword)
	requireKind(t, autherr.KindStoreUnavailable, err)
	assert.ErrorIs(t, err, ErrSessionNotOpened)
	assert.Empty(t, pair.AccessToken)
	assert.NotZero(t, u.ID)

	_, err = f.users.UserByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, f.mr.Restart())

	_, _, err = f.auth.Login(ctx, "alice", strongPassword)
	assert.NoError(t, err)
}

func TestRefreshIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, first := f.register(t, "alice", "a@x.com")

	second, err := f.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.auth.Refresh(ctx, first.RefreshToken)
	requireKind(t, autherr.KindTokenInvalid, err)

	_, err = f.auth.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, pair := f.register(t, "alice", "a@x.com")

	const workers = 8
	start := make(chan struct{})
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.auth.Refresh(ctx, pair.RefreshToken)
			errs <- err
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		requireKind(t, autherr.KindTokenInvalid, err)
	}

	assert.Equal(t, 1, winners)
}

func TestRefreshAfterNewLoginIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, first := f.register(t, "alice", "a@x.com")

	_, _, err := f.auth.Login(ctx, "alice", strongPassword)
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, first.RefreshToken)
	requireKind(t, autherr.KindTokenInvalid, err)
}

func TestRefreshRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u, pair := f.register(t, "alice", "a@x.com")

	_, err := f.auth.Refresh(ctx, "")
	requireKind(t, autherr.KindValidation, err)

	_, err = f.auth.Refresh(ctx, "garbage")
	requireKind(t, autherr.KindTokenInvalid, err)

	_, err = f.auth.Refresh(ctx, pair.AccessToken)
	requireKind(t, autherr.KindTokenInvalid, err)

	require.NoError(t, f.users.SetBanStatus(ctx, u.ID, true, ""))
	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	requireKind(t, autherr.KindUserBanned, err)
}

func TestRefreshUnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.tokens.Issue(42)
	require.NoError(t, err)
	require.NoError(t, f.sessions.SetRefresh(ctx, 42, pair.RefreshToken, time.Hour))

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	requireKind(t, autherr.KindNotFound, err)
}

func TestAuthenticateKinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u, pair := f.register(t, "alice", "a@x.com")

	_, err := f.auth.Authenticate(ctx, "")
	requireKind(t, autherr.KindUnauthenticated, err)

	_, err = f.auth.Authenticate(ctx, "not-a-jwt")
	requireKind(t, autherr.KindTokenInvalid, err)

	_, err = f.auth.Authenticate(ctx, pair.RefreshToken)
	requireKind(t, autherr.KindTokenInvalid, err)

	ghost, err := f.tokens.Issue(999)
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, ghost.AccessToken)
	requireKind(t, autherr.KindNotFound, err)

	require.NoError(t, f.users.SetBanStatus(ctx, u.ID, true, ""))
	_, err = f.auth.Authenticate(ctx, pair.AccessToken)
	requireKind(t, autherr.KindUserBanned, err)
}

func TestAuthenticateFailsClosed(t *testing.T) {
	f := newFixture(t)
	_, pair := f.register(t, "alice", "a@x.com")
	f.mr.Close()

	_, err := f.auth.Authenticate(context.Background(), pair.AccessToken)
	requireKind(t, autherr.KindStoreUnavailable, err)
}

func TestLogoutWithoutTokensIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.auth.Logout(context.Background(), "", ""))
	assert.NoError(t, f.auth.Logout(context.Background(), "garbage", "garbage"))
}

func TestLogoutWithRefreshOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u, pair := f.register(t, "alice", "a@x.com")

	require.NoError(t, f.auth.Logout(ctx, "", pair.RefreshToken))

	_, err := f.sessions.GetRefresh(ctx, u.ID)
	assert.Error(t, err)
}

func TestSetBanStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin, _ := f.register(t, "root", "root@x.com")
	require.NoError(t, f.users.SetRole(ctx, admin.ID, models.RoleAdmin))
	u, pair := f.register(t, "alice", "a@x.com")

	err := f.auth.SetBanStatus(ctx, admin.Identity(), admin.ID, true, "")
	requireKind(t, autherr.KindValidation, err)

	err = f.auth.SetBanStatus(ctx, admin.Identity(), 999, true, "")
	requireKind(t, autherr.KindNotFound, err)

	require.NoError(t, f.auth.SetBanStatus(ctx, admin.Identity(), u.ID, true, "spam"))

	assert.Equal(t, []int64{u.ID}, f.sockets.disconnected)
	_, ok := f.notifier.last(models.PurposeBanned)
	assert.True(t, ok)

	// The session entry is left to its TTL; the banned flag blocks it.
	stored, err := f.sessions.GetRefresh(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, stored)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	requireKind(t, autherr.KindUserBanned, err)

	_, err = f.auth.Authenticate(ctx, pair.AccessToken)
	requireKind(t, autherr.KindUserBanned, err)

	require.NoError(t, f.auth.SetBanStatus(ctx, admin.Identity(), u.ID, false, ""))
	_, ok = f.notifier.last(models.PurposeUnbanned)
	assert.True(t, ok)

	_, err = f.auth.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)

	_, err = f.auth.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), models.Identity{UserID: 7})
	id, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), id.UserID)
}
