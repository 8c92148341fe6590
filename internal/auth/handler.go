package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-intel/internal/domain"
	"telegram-intel/internal/pkg/response"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type sessionRequest struct {
	SessionFile string `json:"session_file"`
}

// Handler обслуживает HTTP-эндпоинты аутентификации.
type Handler struct {
	service  *Service
	verifier TokenVerifier
}

// NewHandler создает обработчик.
func NewHandler(service *Service, verifier TokenVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// Routes возвращает маршруты /api/v1/auth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(Middleware(h.verifier))
		r.Get("/me", h.Me)
		r.Put("/session", h.BindSession)
	})

	return r
}

// Register обрабатывает POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Не удалось декодировать тело запроса")
		return
	}

	u, err := h.service.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrEmailTaken):
		response.Conflict(w, "Пользователь с таким email уже зарегистрирован")
	case errors.Is(err, ErrInvalidEmail):
		response.BadRequest(w, "Некорректный email")
	case errors.Is(err, ErrWeakPassword):
		response.BadRequest(w, "Пароль должен содержать не менее 8 символов")
	case err != nil:
		response.InternalError(w, "Не удалось зарегистрировать пользователя")
	default:
		response.JSON(w, http.StatusCreated, u)
	}
}

// Login обрабатывает POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Не удалось декодировать тело запроса")
		return
	}

	token, exp, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		response.Unauthorized(w, "Неверный email или пароль")
	case err != nil:
		response.InternalError(w, "Не удалось выполнить вход")
	default:
		response.JSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: exp})
	}
}

// Me обрабатывает GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := PrincipalFromContext(r.Context())

	u, err := h.service.Me(r.Context(), id)
	h.writeUser(w, u, err)
}

// BindSession обрабатывает PUT /session
func (h *Handler) BindSession(w http.ResponseWriter, r *http.Request) {
	id, _ := PrincipalFromContext(r.Context())

	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Не удалось декодировать тело запроса")
		return
	}

	u, err := h.service.BindSession(r.Context(), id, req.SessionFile)
	if errors.Is(err, ErrInvalidSessionFile) {
		response.BadRequest(w, "Некорректное имя файла сессии")
		return
	}
	h.writeUser(w, u, err)
}

func (h *Handler) writeUser(w http.ResponseWriter, u *domain.AppUser, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(w, "Пользователь не найден")
	case err != nil:
		response.InternalError(w, "Внутренняя ошибка сервера")
	default:
		response.JSON(w, http.StatusOK, u)
	}
}
