package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrUnauthorized возвращается, если сервер сбора отверг токен доступа.
var ErrUnauthorized = errors.New("access token rejected by server")

// ErrBusy возвращается, если для пользователя уже выполняется сбор.
var ErrBusy = errors.New("collection already in progress")

// ServerAPI - операции сервера сбора, которые использует бот.
type ServerAPI interface {
	StartRun(ctx context.Context, token, target string, limit int) (*StartRunResponse, error)
	GetRunStatus(ctx context.Context, token, runID string) (*RunStatusResponse, error)
	GetParticipants(ctx context.Context, token string, chatID int64, page, pageSize int) (*ParticipantsResponse, error)
}

// ServerClient - клиент для взаимодействия с API сервера сбора.
type ServerClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ ServerAPI = (*ServerClient)(nil)

// NewServerClient создает новый экземпляр ServerClient.
func NewServerClient(baseURL string, timeout time.Duration) *ServerClient {
	return &ServerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout, // Общий таймаут для запросов
		},
	}
}

// API-ответы
type StartRunResponse struct {
	RunID string `json:"run_id"`
}

type OutcomeDTO struct {
	Message string  `json:"message"`
	ChatID  *int64  `json:"chat_id"`
	Status  *string `json:"status"`
}

type RunStatusResponse struct {
	RunID        string      `json:"run_id"`
	Target       string      `json:"target"`
	Status       string      `json:"status"`
	Outcome      *OutcomeDTO `json:"outcome,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// PaginationDTO представляет собой объект пагинации из ответа сервера.
type PaginationDTO struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

// MemberDTO представляет собой участника чата из ответа сервера.
type MemberDTO struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Phone      string  `json:"phone"`
	IsBot      bool    `json:"is_bot"`
	IsDeleted  bool    `json:"is_deleted"`
	Role       string  `json:"participant_type"`
	InviterID  *int64  `json:"inviter_user_id"`
	JoinedDate *string `json:"joined_date"`
}

// Name возвращает имя и фамилию участника.
func (m MemberDTO) Name() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	default:
		return m.FirstName + " " + m.LastName
	}
}

type ParticipantsResponse struct {
	Pagination PaginationDTO `json:"pagination"`
	Data       []MemberDTO   `json:"data"`
}

type collectRequest struct {
	ChatTarget any  `json:"chat_target"`
	Limit      int  `json:"limit,omitempty"`
	Async      bool `json:"async"`
}

// StartRun запускает асинхронный прогон сбора. Числовые цели отправляются числом.
func (c *ServerClient) StartRun(ctx context.Context, token, target string, limit int) (*StartRunResponse, error) {
	body := collectRequest{ChatTarget: target, Limit: limit, Async: true}
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		body.ChatTarget = id
	}

	var result StartRunResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/collector/collect", token, body, http.StatusAccepted, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRunStatus запрашивает статус прогона.
func (c *ServerClient) GetRunStatus(ctx context.Context, token, runID string) (*RunStatusResponse, error) {
	var result RunStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/collector/runs/"+runID, token, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetParticipants запрашивает страницу сохраненных участников чата.
func (c *ServerClient) GetParticipants(ctx context.Context, token string, chatID int64, page, pageSize int) (*ParticipantsResponse, error) {
	path := fmt.Sprintf("/api/v1/collector/chats/%d/participants?page=%d&page_size=%d", chatID, page, pageSize)
	var result ParticipantsResponse
	if err := c.do(ctx, http.MethodGet, path, token, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ServerClient) do(ctx context.Context, method, path, token string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return ErrBusy
	case resp.StatusCode != wantStatus:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
