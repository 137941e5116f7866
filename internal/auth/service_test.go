package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeDirectory struct {
	creds map[string]Credential // kind:account
}

func (f *fakeDirectory) Credential(_ context.Context, kind Kind, account string) (Credential, error) {
	cred, ok := f.creds[string(kind)+":"+account]
	if !ok {
		return Credential{}, ErrInvalidCredentials
	}
	return cred, nil
}

type fakeOTPEnqueuer struct {
	sent map[string]string
}

func (f *fakeOTPEnqueuer) EnqueueOTPEmail(_ context.Context, email, code string) error {
	f.sent[email] = code
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeDirectory, *fakeOTPEnqueuer) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	directory := &fakeDirectory{creds: map[string]Credential{}}
	enqueuer := &fakeOTPEnqueuer{sent: map[string]string{}}
	svc := NewService(
		NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour),
		NewTokenStore(rdb),
		directory,
		enqueuer,
		slog.New(slog.DiscardHandler),
	)
	return svc, directory, enqueuer
}

func seedCredential(t *testing.T, directory *fakeDirectory, kind Kind, account, password string, disabled bool) uuid.UUID {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	id := uuid.New()
	directory.creds[string(kind)+":"+account] = Credential{
		ID:           id,
		PasswordHash: string(hash),
		Disabled:     disabled,
	}
	return id
}

func TestLoginIssuesPair(t *testing.T) {
	svc, directory, _ := newTestService(t)
	id := seedCredential(t, directory, KindMember, "kim01", "hunter22", false)

	pair, err := svc.Login(context.Background(), KindMember, "kim01", "hunter22")
	require.NoError(t, err)

	principal, _, err := svc.tokens.Validate(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, Principal{ID: id, Kind: KindMember}, principal)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, directory, _ := newTestService(t)
	seedCredential(t, directory, KindMember, "kim01", "hunter22", false)

	_, err := svc.Login(context.Background(), KindMember, "kim01", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledPrincipal(t *testing.T) {
	svc, directory, _ := newTestService(t)
	seedCredential(t, directory, KindCompany, "acme", "hunter22", true)

	_, err := svc.Login(context.Background(), KindCompany, "acme", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	svc, directory, _ := newTestService(t)
	seedCredential(t, directory, KindMember, "kim01", "hunter22", false)

	for i := 0; i < MaxLoginFailures; i++ {
		_, err := svc.Login(context.Background(), KindMember, "kim01", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Even the correct password is refused while locked.
	_, err := svc.Login(context.Background(), KindMember, "kim01", "hunter22")
	assert.ErrorIs(t, err, ErrLocked)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	svc, directory, _ := newTestService(t)
	seedCredential(t, directory, KindStore, "lunchbox", "hunter22", false)

	pair, err := svc.Login(context.Background(), KindStore, "lunchbox", "hunter22")
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, rotated.Refresh)

	// The rotated-away token is dead.
	_, err = svc.Refresh(context.Background(), pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenReused)

	// The new one still works.
	_, err = svc.Refresh(context.Background(), rotated.Refresh)
	assert.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, directory, _ := newTestService(t)
	seedCredential(t, directory, KindMember, "kim01", "hunter22", false)

	pair, err := svc.Login(context.Background(), KindMember, "kim01", "hunter22")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.Access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	svc, directory, _ := newTestService(t)
	seedCredential(t, directory, KindMember, "kim01", "hunter22", false)

	pair, err := svc.Login(context.Background(), KindMember, "kim01", "hunter22")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), pair.Refresh))

	_, err = svc.Refresh(context.Background(), pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenReused)
}

func TestOTPRoundTrip(t *testing.T) {
	svc, _, enqueuer := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestOTP(ctx, "kim@example.com"))
	code, ok := enqueuer.sent["kim@example.com"]
	require.True(t, ok)
	require.Len(t, code, 6)

	require.NoError(t, svc.VerifyOTP(ctx, "kim@example.com", code))
	assert.ErrorIs(t, svc.VerifyOTP(ctx, "kim@example.com", code), ErrOTPExpired)
}
