package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"telegram-intel/internal/auth"
	"telegram-intel/internal/domain"
	"telegram-intel/internal/pkg/config"
	"telegram-intel/internal/pkg/response"
	"telegram-intel/internal/ports"
)

// runTTL - сколько хранится запись о прогоне после запуска.
const runTTL = 24 * time.Hour

// CollectionTrigger определяет интерфейс граничной операции запуска сбора.
// Reserve занимает слот принципала до ответа клиенту; прогон выполняется позже.
type CollectionTrigger interface {
	TriggerCollection(ctx context.Context, principalID uuid.UUID, ref domain.RemoteEntityRef, limit int) (domain.CollectionOutcome, error)
	Reserve(principalID uuid.UUID) (ports.ReservedRun, bool)
}

// collectRequest - тело запроса на сбор. chat_target - число (ID чата) или строка (username, ссылка).
type collectRequest struct {
	ChatTarget json.RawMessage `json:"chat_target"`
	Limit      int             `json:"limit"`
	Async      bool            `json:"async"`
}

type collectResponse struct {
	domain.CollectionOutcome
	RunID string `json:"run_id"`
}

// Server представляет HTTP-сервер сборщика
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	runs       *RunStore
	trigger    CollectionTrigger
	members    ports.MemberReader
	log        *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option - функциональная опция для Server.
type Option func(*Server)

// WithLogger устанавливает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMembers включает чтение сохраненных участников чата.
func WithMembers(r ports.MemberReader) Option {
	return func(s *Server) {
		s.members = r
	}
}

// New создает новый экземпляр Server
func New(cfg *config.Config, trigger CollectionTrigger, runs *RunStore, verifier auth.TokenVerifier, opts ...Option) (*Server, error) {
	if trigger == nil || runs == nil || verifier == nil {
		return nil, errors.New("server: trigger, run store and token verifier are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		runs:    runs,
		trigger: trigger,
		log:     slog.Default(),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chiRouter.Route("/api/v1/collector", func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		r.Post("/collect", s.handleCollect)
		r.Get("/runs/{runID}", s.handleGetRun)
		if s.members != nil {
			r.Get("/chats/{chatID}/participants", s.handleListMembers)
		}
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  config.DefaultIdleTimeout,
	}

	// Запуск тикера для очистки просроченных прогонов
	s.runs.StartCleanupTicker(ctx, config.DefaultCleanupInterval)

	return s, nil
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	principalID, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Требуется авторизация")
		return
	}

	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Не удалось декодировать тело запроса")
		return
	}
	if req.Limit < 0 {
		response.BadRequest(w, "limit не может быть отрицательным")
		return
	}

	ref, err := parseTarget(req.ChatTarget)
	if err != nil {
		response.BadRequest(w, fmt.Sprintf("Некорректный chat_target: %v", err))
		return
	}

	runID := uuid.NewString()
	log := s.log.With("run_id", runID, "principal_id", principalID, "request_id", middleware.GetReqID(r.Context()))

	if req.Async {
		run, ok := s.trigger.Reserve(principalID)
		if !ok {
			response.Conflict(w, "Сбор данных для этого пользователя уже выполняется, повторите запрос позже.")
			return
		}
		s.runs.CreateRun(runID, principalID, ref.String(), runTTL)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(s.baseCtx, log, runID, ref, req.Limit, run)
		}()

		response.JSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
		return
	}

	s.runs.CreateRun(runID, principalID, ref.String(), runTTL)
	outcome, err := s.execute(r.Context(), log, runID, ref, req.Limit,
		func(ctx context.Context, ref domain.RemoteEntityRef, limit int) (domain.CollectionOutcome, error) {
			return s.trigger.TriggerCollection(ctx, principalID, ref, limit)
		})
	body := collectResponse{CollectionOutcome: outcome, RunID: runID}
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		response.JSON(w, http.StatusConflict, body)
	case err != nil:
		response.JSON(w, http.StatusInternalServerError, body)
	default:
		response.JSON(w, http.StatusOK, body)
	}
}

// execute выполняет прогон и фиксирует его итог в RunStore.
func (s *Server) execute(ctx context.Context, log *slog.Logger, runID string, ref domain.RemoteEntityRef, limit int, run ports.ReservedRun) (domain.CollectionOutcome, error) {
	s.recordRun(ctx, log, "processing", s.runs.UpdateRunStatus(runID, RunStatusProcessing))
	log.InfoContext(ctx, "Collection run started", "target", ref.String(), "limit", limit)

	outcome, err := run(ctx, ref, limit)
	if err != nil {
		log.ErrorContext(ctx, "Collection run failed", "error", err)
		s.recordRun(ctx, log, "failed", s.runs.FailRun(runID, outcome, err.Error()))
		return outcome, err
	}

	s.recordRun(ctx, log, "completed", s.runs.CompleteRun(runID, outcome))
	return outcome, nil
}

// recordRun логирует неудачное обновление записи о прогоне; ответ клиенту от этого не меняется.
func (s *Server) recordRun(ctx context.Context, log *slog.Logger, status string, err error) {
	if err != nil {
		log.WarnContext(ctx, "Failed to update run record", "status", status, "error", err)
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	principalID, _ := auth.PrincipalFromContext(r.Context())
	runID := chi.URLParam(r, "runID")

	run, err := s.runs.GetRun(runID)
	if err != nil || run.PrincipalID != principalID {
		response.NotFound(w, "Прогон не найден")
		return
	}
	response.JSON(w, http.StatusOK, run)
}

// Pagination описывает страницу результата.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
}

type membersResponse struct {
	Pagination Pagination          `json:"pagination"`
	Data       []domain.ChatMember `json:"data"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || chatID == 0 {
		response.BadRequest(w, "Некорректный идентификатор чата")
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		response.BadRequest(w, "page должен быть положительным числом")
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		response.BadRequest(w, fmt.Sprintf("page_size должен быть в диапазоне 1-%d", maxPageSize))
		return
	}

	members, total, err := s.members.ListChatMembers(r.Context(), chatID, (page-1)*pageSize, pageSize)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to list chat members", "chat_id", chatID, "error", err)
		response.InternalError(w, "Не удалось получить участников чата")
		return
	}

	response.JSON(w, http.StatusOK, membersResponse{
		Pagination: Pagination{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
			TotalPages:  (total + int64(pageSize) - 1) / int64(pageSize),
		},
		Data: members,
	})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// parseTarget принимает число (ID чата) или строку (username, ссылку, строковый ID).
func parseTarget(raw json.RawMessage) (domain.RemoteEntityRef, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.RemoteEntityRef{}, fmt.Errorf("%w: chat_target is required", domain.ErrInvalidRef)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.RemoteEntityRef{}, fmt.Errorf("%w: %v", domain.ErrInvalidRef, err)
		}
		return domain.ParseRef(s)
	}

	var id int64
	if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
		return domain.RemoteEntityRef{}, fmt.Errorf("%w: chat_target must be a non-zero integer or a string", domain.ErrInvalidRef)
	}
	return domain.RefFromID(id), nil
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера и дожидается фоновых прогонов
// (или отменяет их по истечении ctx).
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	err := s.HTTPServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Cancelling background collection runs")
	}
	s.cancel()
	return err
}
