package main

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStoreBlacklist(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	require.False(t, store.IsBlacklisted(ctx, "tok-1"))

	require.NoError(t, store.Blacklist(ctx, "tok-1", "alice", time.Minute))
	require.True(t, store.IsBlacklisted(ctx, "tok-1"))

	// Zero or negative remaining TTL means the token is already expired and
	// there is nothing to blacklist.
	require.NoError(t, store.Blacklist(ctx, "tok-2", "alice", 0))
	require.False(t, store.IsBlacklisted(ctx, "tok-2"))
}

func TestMemoryTokenStoreBlacklistExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Blacklist(ctx, "tok-1", "alice", time.Minute))
	require.True(t, store.IsBlacklisted(ctx, "tok-1"))

	now = now.Add(2 * time.Minute)
	require.False(t, store.IsBlacklisted(ctx, "tok-1"))
}

func TestMemoryTokenStoreUserSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	require.NoError(t, store.AddToUserSet(ctx, "alice", "tok-1", time.Hour))
	require.NoError(t, store.AddToUserSet(ctx, "alice", "tok-2", time.Hour))

	members, err := store.UserSetMembers(ctx, "alice")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"tok-1", "tok-2"}, members)

	require.NoError(t, store.RemoveFromUserSet(ctx, "alice", "tok-1"))
	members, err = store.UserSetMembers(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"tok-2"}, members)

	require.NoError(t, store.DeleteUserSet(ctx, "alice"))
	members, err = store.UserSetMembers(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestMemoryTokenStoreUserSetTTLResetsOnAdd(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.AddToUserSet(ctx, "alice", "tok-1", time.Hour))

	// A later insert pushes the whole set's deadline out, keeping the first
	// token visible past its original hour.
	now = now.Add(50 * time.Minute)
	require.NoError(t, store.AddToUserSet(ctx, "alice", "tok-2", time.Hour))

	now = now.Add(30 * time.Minute)
	members, err := store.UserSetMembers(ctx, "alice")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"tok-1", "tok-2"}, members)

	// Past the refreshed deadline the set is gone as a whole.
	now = now.Add(time.Hour)
	members, err = store.UserSetMembers(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestMemoryTokenStoreActive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	require.NoError(t, store.PutActive(ctx, "tok-1", "alice", time.Hour))
	require.NoError(t, store.RemoveActive(ctx, "tok-1"))
	require.True(t, store.Ping(ctx))
}

func TestMemoryTokenStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", i)
			_ = store.PutActive(ctx, token, "alice", time.Hour)
			_ = store.AddToUserSet(ctx, "alice", token, time.Hour)
			_ = store.IsBlacklisted(ctx, token)
		}(i)
	}
	wg.Wait()

	members, err := store.UserSetMembers(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, members, 50)
}
