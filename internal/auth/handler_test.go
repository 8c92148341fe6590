package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"telegram-intel/internal/domain"
)

type mockPrincipalRepo struct{ mock.Mock }

func (m *mockPrincipalRepo) CreateAppUser(ctx context.Context, email, passwordHash string) (*domain.AppUser, error) {
	args := m.Called(ctx, email, passwordHash)
	if res := args.Get(0); res != nil {
		return res.(*domain.AppUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPrincipalRepo) GetAppUser(ctx context.Context, id uuid.UUID) (*domain.AppUser, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*domain.AppUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPrincipalRepo) GetAppUserByEmail(ctx context.Context, email string) (*domain.AppUser, error) {
	args := m.Called(ctx, email)
	if res := args.Get(0); res != nil {
		return res.(*domain.AppUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPrincipalRepo) BindSessionFile(ctx context.Context, id uuid.UUID, sessionFile string) (*domain.AppUser, error) {
	args := m.Called(ctx, id, sessionFile)
	if res := args.Get(0); res != nil {
		return res.(*domain.AppUser), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestHandler(repo *mockPrincipalRepo, opts ...Option) (http.Handler, *TokenManager) {
	tokens := NewTokenManager(testSecret, time.Hour)
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	h := NewHandler(NewService(repo, tokens, opts...), tokens)
	return h.Routes(), tokens
}

func do(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_Register(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		repo := new(mockPrincipalRepo)
		h, _ := newTestHandler(repo)
		id := uuid.New()

		repo.On("GetAppUserByEmail", mock.Anything, "alice@example.com").Return(nil, nil).Once()
		repo.On("CreateAppUser", mock.Anything, "alice@example.com", mock.MatchedBy(func(hash string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")) == nil
		})).Return(&domain.AppUser{ID: id, Email: "alice@example.com", PasswordHash: "secret-hash"}, nil).Once()

		rr := do(h, http.MethodPost, "/register", `{"email":" Alice@example.com ","password":"correct horse"}`, "")

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "secret-hash")
		var u domain.AppUser
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
		assert.Equal(t, id, u.ID)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := new(mockPrincipalRepo)
		h, _ := newTestHandler(repo)
		repo.On("GetAppUserByEmail", mock.Anything, "bob@example.com").Return(&domain.AppUser{ID: uuid.New()}, nil).Once()

		rr := do(h, http.MethodPost, "/register", `{"email":"bob@example.com","password":"password123"}`, "")

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		h, _ := newTestHandler(new(mockPrincipalRepo))

		rr := do(h, http.MethodPost, "/register", `{"email":"bob@example.com","password":"short"}`, "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad email", func(t *testing.T) {
		h, _ := newTestHandler(new(mockPrincipalRepo))

		rr := do(h, http.MethodPost, "/register", `{"email":"not an email","password":"password123"}`, "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHandler_LoginAndMe(t *testing.T) {
	repo := new(mockPrincipalRepo)
	h, tokens := newTestHandler(repo)
	id := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.AppUser{ID: id, Email: "alice@example.com", PasswordHash: string(hash)}

	t.Run("wrong password", func(t *testing.T) {
		repo.On("GetAppUserByEmail", mock.Anything, "alice@example.com").Return(user, nil).Once()

		rr := do(h, http.MethodPost, "/login", `{"email":"alice@example.com","password":"nope-nope"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo.On("GetAppUserByEmail", mock.Anything, "ghost@example.com").Return(nil, nil).Once()

		rr := do(h, http.MethodPost, "/login", `{"email":"ghost@example.com","password":"password123"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	var token string
	t.Run("success", func(t *testing.T) {
		repo.On("GetAppUserByEmail", mock.Anything, "alice@example.com").Return(user, nil).Once()

		rr := do(h, http.MethodPost, "/login", `{"email":"alice@example.com","password":"password123"}`, "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp tokenResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "bearer", resp.TokenType)
		got, err := tokens.Verify(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		token = resp.AccessToken
	})

	t.Run("me", func(t *testing.T) {
		repo.On("GetAppUser", mock.Anything, id).Return(user, nil).Once()

		rr := do(h, http.MethodGet, "/me", "", token)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "alice@example.com")
	})

	t.Run("me without token", func(t *testing.T) {
		rr := do(h, http.MethodGet, "/me", "", "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("me with malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Token abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHandler_BindSession(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.session"), []byte("{}"), 0o600))

	repo := new(mockPrincipalRepo)
	h, tokens := newTestHandler(repo, WithSessionDir(dir))
	id := uuid.New()
	token, _, err := tokens.Issue(id)
	require.NoError(t, err)

	t.Run("bound", func(t *testing.T) {
		repo.On("BindSessionFile", mock.Anything, id, "alice.session").
			Return(&domain.AppUser{ID: id, SessionFile: "alice.session"}, nil).Once()

		rr := do(h, http.MethodPut, "/session", `{"session_file":"alice.session"}`, token)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "alice.session")
	})

	t.Run("path traversal", func(t *testing.T) {
		rr := do(h, http.MethodPut, "/session", `{"session_file":"../etc/passwd"}`, token)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		rr := do(h, http.MethodPut, "/session", `{"session_file":"bob.session"}`, token)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("principal gone", func(t *testing.T) {
		repo.On("BindSessionFile", mock.Anything, id, "alice.session").Return(nil, nil).Once()

		rr := do(h, http.MethodPut, "/session", `{"session_file":"alice.session"}`, token)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
