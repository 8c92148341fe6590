package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-intel/internal/domain"
)

// RunStatus представляет статус прогона сбора
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// Run представляет собой один прогон сбора, запущенный через API
type Run struct {
	ID           string                    `json:"run_id"`
	PrincipalID  uuid.UUID                 `json:"-"`
	Target       string                    `json:"target"`
	Status       RunStatus                 `json:"status"`
	Outcome      *domain.CollectionOutcome `json:"outcome,omitempty"`
	ErrorMessage string                    `json:"error_message,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	ExpiresAt    time.Time                 `json:"-"` // Для автоматической очистки
}

// RunStore хранит прогоны и не дает одному принципалу запускать их параллельно:
// сессия Telegram принципала не рассчитана на одновременные запросы.
type RunStore struct {
	runs   map[string]*Run
	active map[uuid.UUID]struct{}
	mutex  sync.RWMutex
	now    func() time.Time
}

// NewRunStore создает новый экземпляр RunStore
func NewRunStore() *RunStore {
	return &RunStore{
		runs:   make(map[string]*Run),
		active: make(map[uuid.UUID]struct{}),
		now:    time.Now,
	}
}

// TryAcquire занимает слот прогона принципала. Возвращает false, если слот занят.
func (rs *RunStore) TryAcquire(principalID uuid.UUID) (func(), bool) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	if _, busy := rs.active[principalID]; busy {
		return nil, false
	}
	rs.active[principalID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			rs.mutex.Lock()
			delete(rs.active, principalID)
			rs.mutex.Unlock()
		})
	}, true
}

// CreateRun создает прогон со статусом 'pending'
func (rs *RunStore) CreateRun(runID string, principalID uuid.UUID, target string, ttl time.Duration) {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	now := rs.now()
	rs.runs[runID] = &Run{
		ID:          runID,
		PrincipalID: principalID,
		Target:      target,
		Status:      RunStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// UpdateRunStatus обновляет статус прогона
func (rs *RunStore) UpdateRunStatus(runID string, status RunStatus) error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	run, exists := rs.runs[runID]
	if !exists {
		return fmt.Errorf("прогон с ID %s не найден", runID)
	}

	run.Status = status
	return nil
}

// CompleteRun сохраняет итог прогона со статусом 'completed'
func (rs *RunStore) CompleteRun(runID string, outcome domain.CollectionOutcome) error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	run, exists := rs.runs[runID]
	if !exists {
		return fmt.Errorf("прогон с ID %s не найден", runID)
	}

	run.Status = RunStatusCompleted
	run.Outcome = &outcome
	return nil
}

// FailRun сохраняет частичный итог и сообщение об ошибке со статусом 'failed'
func (rs *RunStore) FailRun(runID string, outcome domain.CollectionOutcome, errorMessage string) error {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	run, exists := rs.runs[runID]
	if !exists {
		return fmt.Errorf("прогон с ID %s не найден", runID)
	}

	run.Status = RunStatusFailed
	run.Outcome = &outcome
	run.ErrorMessage = errorMessage
	return nil
}

// GetRun возвращает копию прогона по его ID
func (rs *RunStore) GetRun(runID string) (Run, error) {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()

	run, exists := rs.runs[runID]
	if !exists {
		return Run{}, fmt.Errorf("прогон с ID %s не найден", runID)
	}

	return *run, nil
}

// CleanupExpired удаляет просроченные прогоны
func (rs *RunStore) CleanupExpired() int {
	rs.mutex.Lock()
	defer rs.mutex.Unlock()

	now := rs.now()
	removed := 0
	for runID, run := range rs.runs {
		if now.After(run.ExpiresAt) {
			delete(rs.runs, runID)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker запускает периодическую очистку просроченных прогонов до отмены ctx
func (rs *RunStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rs.CleanupExpired()
			}
		}
	}()
}
