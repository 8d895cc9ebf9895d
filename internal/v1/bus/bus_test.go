package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishOrderPerReceiver(t *testing.T) {
	b := New[int](16)
	defer b.Close()
	r1 := b.Subscribe()
	r2 := b.Subscribe()
	defer r1.Close()
	defer r2.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(ctx, i))
	}

	for _, r := range []*Receiver[int]{r1, r2} {
		for i := 0; i < 10; i++ {
			got, err := r.Recv(ctx)
			require.NoError(t, err)
			assert.Equal(t, i, got)
		}
	}
}

func TestSubscribeSkipsHistory(t *testing.T) {
	b := New[int](16)
	defer b.Close()
	ctx := context.Background()

	early := b.Subscribe()
	defer early.Close()
	require.NoError(t, b.Publish(ctx, 1))

	late := b.Subscribe()
	defer late.Close()
	require.NoError(t, b.Publish(ctx, 2))

	got, err := late.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "new subscribers start after the publish cursor")
}

func TestDeactivateMutesDelivery(t *testing.T) {
	b := New[int](16)
	defer b.Close()
	ctx := context.Background()

	r := b.Subscribe()
	defer r.Close()

	r.Deactivate()
	require.NoError(t, b.Publish(ctx, 1))
	r.Activate()
	require.NoError(t, b.Publish(ctx, 2))

	got, err := r.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "messages published while inactive are skipped")
}

func TestCloseWakesReceivers(t *testing.T) {
	b := New[int](16)
	r := b.Subscribe()
	defer r.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken by Close")
	}

	assert.ErrorIs(t, b.Publish(context.Background(), 1), ErrClosed)
}

func TestCloseDrainsQueuedMessages(t *testing.T) {
	b := New[int](16)
	r := b.Subscribe()
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, 7))
	b.Close()

	got, err := r.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = r.Recv(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishBlocksOnSlowReceiver(t *testing.T) {
	b := New[int](1)
	defer b.Close()
	slow := b.Subscribe()
	defer slow.Close()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, 1)) // fills the queue

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := b.Publish(shortCtx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Draining releases the backpressure.
	_, err = slow.Recv(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, 3))
}

func TestReceiverCloseReleasesPublisher(t *testing.T) {
	b := New[int](1)
	defer b.Close()
	stuck := b.Subscribe()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, 1))

	done := make(chan error, 1)
	go func() { done <- b.Publish(ctx, 2) }()

	time.Sleep(10 * time.Millisecond)
	stuck.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher still blocked after receiver close")
	}
	assert.Equal(t, 0, b.receiverCount())
}

func TestSubscribeAfterClose(t *testing.T) {
	b := New[int](1)
	b.Close()
	r := b.Subscribe()
	_, err := r.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	r.Close()
}
