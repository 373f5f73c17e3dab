package linking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walink/cmd/internal/linking"
	"walink/cmd/internal/linking/linkingtest"
)

func codeFactory(code string, registered bool) *linkingtest.Factory {
	return &linkingtest.Factory{New: func(p linking.ConnectParams) linking.Client {
		c := linkingtest.NewClient()
		c.Params = p
		c.Code = code
		c.Registered = registered
		return c
	}}
}

func TestPairingFlow_IssuesFormattedCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t, instantConfig(), codeFactory("ABCDEFGH", false))
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	code, err := flow.Run(context.Background(), "15551234567")
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", code)

	client := h.onlyClient(t)
	assert.Equal(t, []string{"15551234567"}, client.PairRequests())
	assert.Equal(t, 0, client.Terminations(), "session stays open until its deadline")
	assert.Equal(t, 1, h.manager.Registry().Len())

	sessions := h.manager.Registry().Snapshot()
	require.Len(t, sessions, 1)
	assert.Equal(t, linking.StateMilestoneIssued, sessions[0].State())
	assert.True(t, sessions[0].ResponseSent())
	assert.Equal(t, h.clock.Now().Add(120*time.Second), sessions[0].DeadlineAt())

	h.clock.Advance(119 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, client.Terminations())

	h.clock.Advance(time.Second)
	h.requireDrained(t)
	assert.Equal(t, 1, client.Terminations())
}

func TestPairingFlow_AlreadyRegistered(t *testing.T) {
	t.Parallel()

	h := newHarness(t, instantConfig(), codeFactory("ABCDEFGH", true))
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	code, err := flow.Run(context.Background(), "15551234567")
	require.ErrorIs(t, err, linking.ErrAlreadyRegistered)
	assert.Empty(t, code)

	client := h.onlyClient(t)
	assert.Empty(t, client.PairRequests(), "no pairing code may be requested for a registered device")
	assert.Equal(t, 1, client.Terminations())

	// Closed immediately: nothing left for a deadline to do.
	assert.Equal(t, 0, h.manager.Registry().Len())
	assert.Equal(t, 0, h.store.Len())
}

func TestPairingFlow_RejectsMissingNumber(t *testing.T) {
	t.Parallel()

	h := newHarness(t, instantConfig(), nil)
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	for _, phone := range []string{"", "   ", "\t\n"} {
		_, err := flow.Run(context.Background(), phone)
		require.ErrorIs(t, err, linking.ErrInvalidInput)
	}
	assert.Empty(t, h.factory.Calls(), "no session is created for invalid input")
}

func TestPairingFlow_CodeRequestFailureClosesImmediately(t *testing.T) {
	t.Parallel()

	factory := &linkingtest.Factory{New: func(linking.ConnectParams) linking.Client {
		c := linkingtest.NewClient()
		c.CodeErr = errors.New("bad phone number")
		return c
	}}
	h := newHarness(t, instantConfig(), factory)
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	_, err := flow.Run(context.Background(), "not-a-number")
	require.ErrorIs(t, err, linking.ErrConnectionFailed)
	assert.Contains(t, err.Error(), "bad phone number")

	assert.Equal(t, 1, h.onlyClient(t).Terminations())
	assert.Equal(t, 0, h.manager.Registry().Len())
	assert.Equal(t, 0, h.store.Len())
}

func TestPairingFlow_ProvisioningFailureIsConnectionFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, instantConfig(), &linkingtest.Factory{Err: errors.New("dial tcp: timeout")})
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	_, err := flow.Run(context.Background(), "15551234567")
	require.ErrorIs(t, err, linking.ErrConnectionFailed)
	require.ErrorIs(t, err, linking.ErrProvisioning)
	assert.Equal(t, 0, h.store.Len())
}

func TestPairingFlow_FallsBackToRawCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t, instantConfig(), codeFactory("ABCDEF", false))
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	code, err := flow.Run(context.Background(), "15551234567")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF", code)
}

func TestPairingFlow_WaitsWarmUpAndCodeDelay(t *testing.T) {
	t.Parallel()

	cfg := linking.DefaultConfig()
	h := newHarness(t, cfg, codeFactory("WXYZ1234", false))
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := flow.Run(context.Background(), "15551234567")
		done <- result{code, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Warm-up.
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	client := func() *linkingtest.Client {
		return h.factory.Clients()[0].(*linkingtest.Client)
	}
	assert.Empty(t, client().PairRequests())
	h.clock.Advance(cfg.PairWarmUp)

	// Code delay.
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	assert.Empty(t, client().PairRequests(), "code requested before the delay elapsed")
	h.clock.Advance(cfg.PairCodeDelay)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "WXYZ-1234", r.code)
	case <-ctx.Done():
		t.Fatalf("pairing flow did not finish")
	}
}

func TestPairingFlow_UsesReadinessSignalInsteadOfWarmUp(t *testing.T) {
	t.Parallel()

	cfg := instantConfig()
	cfg.PairWarmUp = time.Hour

	factory := &linkingtest.Factory{New: func(linking.ConnectParams) linking.Client {
		c := linkingtest.NewReadyClient()
		c.Code = "ABCDEFGH"
		close(c.Ready)
		return c
	}}
	h := newHarness(t, cfg, factory)
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	code, err := flow.Run(context.Background(), "15551234567")
	require.NoError(t, err)
	assert.Equal(t, "ABCD-EFGH", code)
}

func TestPairingFlow_ReadinessFailureIsConnectionFailure(t *testing.T) {
	t.Parallel()

	factory := &linkingtest.Factory{New: func(linking.ConnectParams) linking.Client {
		c := linkingtest.NewReadyClient()
		c.ReadyErr = errors.New("stream error")
		close(c.Ready)
		return c
	}}
	h := newHarness(t, instantConfig(), factory)
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	_, err := flow.Run(context.Background(), "15551234567")
	require.ErrorIs(t, err, linking.ErrConnectionFailed)
	assert.Equal(t, 1, h.onlyClient(t).Terminations())
	assert.Equal(t, 0, h.store.Len())
}

func TestPairingFlow_CanceledRequestClosesSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, linking.DefaultConfig(), codeFactory("ABCDEFGH", false))
	flow := linking.NewPairingFlow(discardLogger(), h.manager)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := flow.Run(ctx, "15551234567")
		errCh <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, h.clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, linking.ErrConnectionFailed)
		require.ErrorIs(t, err, context.Canceled)
	case <-waitCtx.Done():
		t.Fatalf("flow ignored cancellation")
	}
	h.requireDrained(t)
}
