package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// AttemptLimiter tracks accepted submission attempts per key (client IP).
// Counters expire decaySeconds after their most recent increment, so an
// idle key resets once the window has fully passed.
type AttemptLimiter interface {
	TooManyAttempts(key string, max int) bool
	AvailableIn(key string) int
	Hit(key string, decaySeconds int)
}

// newAttemptLimiter selects the Redis-backed store when redis.addr is
// configured, otherwise the in-process store.
func newAttemptLimiter() AttemptLimiter {
	if addr := viper.GetString("redis.addr"); addr != "" {
		return NewRedisAttemptStore(redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		}))
	}
	store := NewMemoryAttemptStore()
	store.StartCleanupLoop()
	return store
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryAttemptStore is a thread-safe in-memory attempt counter.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]attemptEntry
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string]attemptEntry),
	}
}

func (s *MemoryAttemptStore) TooManyAttempts(key string, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.attempts[key]
	if !exists {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.attempts, key)
		return false
	}
	return entry.count >= max
}

func (s *MemoryAttemptStore) AvailableIn(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.attempts[key]
	if !exists {
		return 0
	}
	remaining := time.Until(entry.expiresAt)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Round(time.Second) / time.Second)
}

func (s *MemoryAttemptStore) Hit(key string, decaySeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(time.Duration(decaySeconds) * time.Second)
	entry, exists := s.attempts[key]
	if !exists || time.Now().After(entry.expiresAt) {
		s.attempts[key] = attemptEntry{count: 1, expiresAt: expiresAt}
		return
	}
	entry.count++
	entry.expiresAt = expiresAt
	s.attempts[key] = entry
}

// CleanupExpired removes all expired counters. Intended to be run
// periodically in a goroutine.
func (s *MemoryAttemptStore) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, entry := range s.attempts {
		if now.After(entry.expiresAt) {
			delete(s.attempts, key)
		}
	}
}

// StartCleanupLoop runs CleanupExpired every 5 minutes in the background.
func (s *MemoryAttemptStore) StartCleanupLoop() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.CleanupExpired()
		}
	}()
}

// RedisAttemptStore keeps attempt counters in a shared Redis instance so
// multiple intake processes share one budget per IP.
type RedisAttemptStore struct {
	client *redis.Client
}

func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{client: client}
}

func (s *RedisAttemptStore) TooManyAttempts(key string, max int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := s.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		slog.Error("rate limiter read failed", "key", key, "error", err)
		return false
	}
	return count >= max
}

func (s *RedisAttemptStore) AvailableIn(key string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		return 0
	}
	return int(ttl.Round(time.Second) / time.Second)
}

func (s *RedisAttemptStore) Hit(key string, decaySeconds int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Duration(decaySeconds)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("rate limiter hit failed", "key", key, "error", err)
	}
}
