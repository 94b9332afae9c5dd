package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/relief-coordination/internal/model"
)

func newTestEngine(clk *clock, codes ...string) (*OTPEngine, *fakeChallenges) {
	store := newFakeChallenges()
	e := NewOTPEngine(store, DefaultOTPTTL, nil)
	e.now = clk.Now
	i := 0
	e.newCode = func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
	return e, store
}

func TestOTPIssueStoresSixDigitsWithExpiry(t *testing.T) {
	clk := newClock()
	e, store := newTestEngine(clk, "012345")

	ch, err := e.Issue(context.Background(), " Ana@Relief.test ")
	require.NoError(t, err)
	assert.Equal(t, "ana@relief.test", ch.Email)
	assert.Equal(t, "012345", ch.Code)
	assert.Equal(t, t0.Add(5*time.Minute), ch.ExpiresAt)

	stored, err := store.Get(context.Background(), "ana@relief.test")
	require.NoError(t, err)
	assert.Equal(t, ch, stored)
}

func TestOTPVerifySucceedsExactlyOnce(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(clk, "123456")
	ctx := context.Background()

	_, err := e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)
	clk.Advance(time.Minute)

	require.NoError(t, e.Verify(ctx, "ana@relief.test", "123456"))
	err = e.Verify(ctx, "ana@relief.test", "123456")
	assert.ErrorIs(t, err, model.ErrOtpConsumed)
	assert.ErrorIs(t, err, model.ErrInvalidOtp)
}

func TestOTPExpiryInstantIsStillValid(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(clk, "123456")
	ctx := context.Background()

	ch, err := e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)
	clk.Set(ch.ExpiresAt)
	assert.NoError(t, e.Verify(ctx, "ana@relief.test", "123456"))

	clk.Set(t0)
	ch, err = e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)
	clk.Set(ch.ExpiresAt.Add(time.Second))
	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "123456"), model.ErrOtpExpired)
}

func TestOTPFailuresDoNotRevealWhichPartWasWrong(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(clk, "123456")
	ctx := context.Background()
	_, err := e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)

	wrongCode := e.Verify(ctx, "ana@relief.test", "654321")
	unknownEmail := e.Verify(ctx, "nobody@relief.test", "123456")
	assert.Equal(t, model.ErrInvalidOtp, wrongCode)
	assert.Equal(t, model.ErrInvalidOtp, unknownEmail)

	clk.Advance(time.Hour)
	assert.Equal(t, model.ErrInvalidOtp, e.Verify(ctx, "nobody@relief.test", "654321"))
}

func TestOTPAnyAttemptAfterExpiryForcesRestart(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(clk, "123456")
	ctx := context.Background()
	ch, err := e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)

	clk.Set(ch.ExpiresAt)
	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "654321"), model.ErrInvalidOtp)

	clk.Set(ch.ExpiresAt.Add(time.Second))
	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "654321"), model.ErrOtpExpired)
	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "123456"), model.ErrOtpExpired)
}

func TestOTPNewIssueSupersedesOld(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(clk, "111111", "222222")
	ctx := context.Background()

	_, err := e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)
	clk.Advance(time.Second)
	_, err = e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)

	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "111111"), model.ErrInvalidOtp)
	assert.NoError(t, e.Verify(ctx, "ana@relief.test", "222222"))
}

func TestOTPBypassNeedsActiveChallenge(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(clk, "123456")
	e.WithBypass("999999")
	ctx := context.Background()

	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "999999"), model.ErrInvalidOtp)

	_, err := e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)
	require.NoError(t, e.Verify(ctx, "ana@relief.test", "999999"))
	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "123456"), model.ErrOtpConsumed)
}

func TestOTPWithoutBypassRejectsBypassCode(t *testing.T) {
	clk := newClock()
	e, _ := newTestEngine(clk, "123456")
	ctx := context.Background()
	_, err := e.Issue(ctx, "ana@relief.test")
	require.NoError(t, err)
	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", ""), model.ErrInvalidOtp)
	assert.ErrorIs(t, e.Verify(ctx, "ana@relief.test", "999999"), model.ErrInvalidOtp)
}
