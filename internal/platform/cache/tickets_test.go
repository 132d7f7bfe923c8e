package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) (*TicketStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewTicketStore(client, ttl), mr
}

func TestTicketIssueAndRedeem(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, "/var/batches/RL24_Batch_x_3documents.zip")
	require.NoError(t, err)
	require.Len(t, token, 32)

	path, err := store.Redeem(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "/var/batches/RL24_Batch_x_3documents.zip", path)

	// Tickets survive a redeem so downloads can be retried.
	path, err = store.Redeem(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "/var/batches/RL24_Batch_x_3documents.zip", path)
}

func TestTicketExpires(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, "/var/batches/a.zip")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Redeem(ctx, token)
	require.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketRevoke(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx, "/var/batches/a.zip")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(ctx, token))

	_, err = store.Redeem(ctx, token)
	require.ErrorIs(t, err, ErrTicketNotFound)
}

func TestUnknownTicket(t *testing.T) {
	store, _ := newTestStore(t, time.Minute)
	_, err := store.Redeem(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrTicketNotFound)
}
