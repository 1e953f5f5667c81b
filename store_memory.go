package main

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	username  string
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// MemoryTokenStore is the in-process TokenStore fallback, used when no Redis
// backend is configured or reachable. Not suitable for clustered deployments:
// revocations are only visible to this process. Expiry is lazy; entries are
// dropped when read past their deadline, so no background sweeper is needed.
type MemoryTokenStore struct {
	mu        sync.RWMutex
	active    map[string]memoryEntry
	blacklist map[string]memoryEntry
	userSets  map[string]*memorySet
	now       func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		active:    make(map[string]memoryEntry),
		blacklist: make(map[string]memoryEntry),
		userSets:  make(map[string]*memorySet),
		now:       time.Now,
	}
}

func (m *MemoryTokenStore) PutActive(_ context.Context, token, username string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[activeKeyPrefix+token] = memoryEntry{username: username, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryTokenStore) AddToUserSet(_ context.Context, username, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userTokensKeyPrefix + username
	set, ok := m.userSets[key]
	if !ok || m.now().After(set.expiresAt) {
		set = &memorySet{members: make(map[string]struct{})}
		m.userSets[key] = set
	}
	set.members[token] = struct{}{}
	// TTL of the whole set resets on every insert, same as EXPIRE after SADD.
	set.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *MemoryTokenStore) IsBlacklisted(_ context.Context, token string) bool {
	m.mu.RLock()
	entry, ok := m.blacklist[blacklistKeyPrefix+token]
	m.mu.RUnlock()
	return ok && m.now().Before(entry.expiresAt)
}

func (m *MemoryTokenStore) Blacklist(_ context.Context, token, username string, remainingTTL time.Duration) error {
	if remainingTTL <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blacklist[blacklistKeyPrefix+token] = memoryEntry{username: username, expiresAt: m.now().Add(remainingTTL)}
	return nil
}

func (m *MemoryTokenStore) RemoveActive(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, activeKeyPrefix+token)
	return nil
}

func (m *MemoryTokenStore) RemoveFromUserSet(_ context.Context, username, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.userSets[userTokensKeyPrefix+username]; ok {
		delete(set.members, token)
	}
	return nil
}

func (m *MemoryTokenStore) UserSetMembers(_ context.Context, username string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.userSets[userTokensKeyPrefix+username]
	if !ok || m.now().After(set.expiresAt) {
		return nil, nil
	}
	members := make([]string, 0, len(set.members))
	for token := range set.members {
		members = append(members, token)
	}
	return members, nil
}

func (m *MemoryTokenStore) DeleteUserSet(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userSets, userTokensKeyPrefix+username)
	return nil
}

func (m *MemoryTokenStore) Ping(_ context.Context) bool { return true }
