// Package cache предоставляет потокобезопасный кэш с временем жизни записей.
package cache

import (
	"context"
	"sync"
	"time"
)

// Item представляет кэшированное значение
type Item[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Store управляет хранением и извлечением кэшированных значений
type Store[K comparable, V any] struct {
	items map[K]Item[V]
	mutex sync.RWMutex
	now   func() time.Time
}

// NewStore создает новый экземпляр Store
func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		items: make(map[K]Item[V]),
		now:   time.Now,
	}
}

// Get извлекает значение по ключу. Просроченные записи не возвращаются.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, exists := s.items[key]
	if !exists || s.now().After(item.ExpiresAt) {
		var zero V
		return zero, false
	}
	return item.Value, true
}

// Put сохраняет значение с указанным сроком действия
func (s *Store[K, V]) Put(key K, value V, ttl time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items[key] = Item[V]{Value: value, ExpiresAt: s.now().Add(ttl)}
}

// Delete удаляет значение по ключу
func (s *Store[K, V]) Delete(key K) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.items, key)
}

// Len возвращает число записей, включая еще не удаленные просроченные
func (s *Store[K, V]) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.items)
}

// CleanupExpired удаляет просроченные записи
func (s *Store[K, V]) CleanupExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for key, item := range s.items {
		if now.After(item.ExpiresAt) {
			delete(s.items, key)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных записей
func (s *Store[K, V]) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired()
			}
		}
	}()
}
