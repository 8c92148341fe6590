package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/telegram"
)

// RetryConfig задает политику повторов при FLOOD_WAIT.
type RetryConfig struct {
	// MaxRetries - максимальное число повторов одного запроса.
	MaxRetries int
	// MaxWait - максимальная допустимая длительность одного ожидания; 0 снимает ограничение.
	MaxWait time.Duration
	// Pad добавляется к длительности, запрошенной сервером.
	Pad time.Duration
}

// DefaultRetryConfig возвращает политику повторов по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		MaxWait:    5 * time.Minute,
		Pad:        time.Second,
	}
}

// floodWaitBackOff возвращает ровно то ожидание, которое запросил сервер.
type floodWaitBackOff struct {
	next time.Duration
}

func (b *floodWaitBackOff) NextBackOff() time.Duration { return b.next }
func (b *floodWaitBackOff) Reset()                     { b.next = 0 }

// realTimer - backoff.Timer поверх time.Timer.
type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = time.NewTimer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *realTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

// FloodRetrier - единая ограниченная политика повторов при FLOOD_WAIT.
// Запрос повторяется с теми же параметрами после ожидания wait+Pad;
// любые другие ошибки возвращаются сразу.
type FloodRetrier struct {
	config   RetryConfig
	newTimer func() backoff.Timer
	log      *slog.Logger
}

// RetrierOption - функциональная опция для FloodRetrier.
type RetrierOption func(*FloodRetrier)

// WithRetrierLogger устанавливает логгер.
func WithRetrierLogger(l *slog.Logger) RetrierOption {
	return func(r *FloodRetrier) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTimer подменяет таймер ожиданий (используется в тестах).
func WithTimer(newTimer func() backoff.Timer) RetrierOption {
	return func(r *FloodRetrier) {
		if newTimer != nil {
			r.newTimer = newTimer
		}
	}
}

// NewFloodRetrier создает FloodRetrier.
func NewFloodRetrier(cfg RetryConfig, opts ...RetrierOption) *FloodRetrier {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	r := &FloodRetrier{
		config:   cfg,
		newTimer: func() backoff.Timer { return &realTimer{} },
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do выполняет f, повторяя его при FLOOD_WAIT. Если бюджет повторов исчерпан
// или сервер требует ждать дольше MaxWait, возвращает ошибку, обернутую domain.ErrRateLimited.
func (r *FloodRetrier) Do(ctx context.Context, op string, f func(ctx context.Context) error) error {
	b := &floodWaitBackOff{}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.MaxRetries)), ctx)

	operation := func() error {
		err := f(ctx)
		if err == nil {
			return nil
		}
		wait, ok := telegram.AsFloodWait(err)
		if !ok {
			return backoff.Permanent(err)
		}
		if r.config.MaxWait > 0 && wait > r.config.MaxWait {
			return backoff.Permanent(fmt.Errorf("%w: requested wait %s exceeds limit %s: %w", domain.ErrRateLimited, wait, r.config.MaxWait, err))
		}
		b.next = wait + r.config.Pad
		return err
	}

	notify := func(err error, d time.Duration) {
		r.log.WarnContext(ctx, "Got FLOOD_WAIT, sleeping before retry", "operation", op, "wait", d, "error", err)
	}

	err := backoff.RetryNotifyWithTimer(operation, policy, notify, r.newTimer())
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	if _, ok := telegram.AsFloodWait(err); ok {
		r.log.ErrorContext(ctx, "Flood wait retry budget exhausted", "operation", op, "max_retries", r.config.MaxRetries)
		return fmt.Errorf("%w: retry budget exhausted: %w", domain.ErrRateLimited, err)
	}
	return err
}

// Pause приостанавливает выполнение на d или до отмены ctx.
func (r *FloodRetrier) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := r.newTimer()
	t.Start(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
