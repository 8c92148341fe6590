package log

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const mask = "***masked***"

// SecretMaskerHandler - обертка для slog.Handler, которая маскирует секреты в логах:
// JWT, заголовки Bearer, значения атрибутов с "секретными" ключами и явно переданные строки
// (api_hash, секрет подписи токенов).
type SecretMaskerHandler struct {
	handler slog.Handler
	secrets []string
}

// NewSecretMaskerHandler создает новый обработчик с маскировкой секретов.
// Пустые строки в secrets игнорируются.
func NewSecretMaskerHandler(handler slog.Handler, secrets ...string) *SecretMaskerHandler {
	h := &SecretMaskerHandler{handler: handler}
	for _, s := range secrets {
		if s != "" {
			h.secrets = append(h.secrets, s)
		}
	}
	return h
}

var (
	// JWT: три base64url-сегмента, заголовок начинается с {"  (eyJ).
	jwtRegex = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	// Bearer-токен в заголовке Authorization.
	bearerRegex = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
)

// sensitiveKeys - ключи атрибутов, значения которых маскируются целиком.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"api_hash":      {},
	"token":         {},
	"access_token":  {},
	"secret":        {},
	"authorization": {},
}

// maskSecrets заменяет найденные секреты на маску
func (h *SecretMaskerHandler) maskSecrets(text string) string {
	for _, s := range h.secrets {
		text = strings.ReplaceAll(text, s, mask)
	}
	text = jwtRegex.ReplaceAllString(text, mask)
	return bearerRegex.ReplaceAllString(text, "${1}"+mask)
}

// Enabled реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) Handle(ctx context.Context, record slog.Record) error {
	// Работаем с копией: slog может переиспользовать исходную запись.
	// Атрибуты добавляем заново уже маскированными.
	r := slog.NewRecord(record.Time, record.Level, h.maskSecrets(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, r)
}

// WithAttrs реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = h.maskAttr(attr)
	}
	return &SecretMaskerHandler{
		handler: h.handler.WithAttrs(masked),
		secrets: h.secrets,
	}
}

// WithGroup реализует интерфейс slog.Handler
func (h *SecretMaskerHandler) WithGroup(name string) slog.Handler {
	return &SecretMaskerHandler{
		handler: h.handler.WithGroup(name),
		secrets: h.secrets,
	}
}

func (h *SecretMaskerHandler) maskAttr(a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, mask)
	}
	return slog.Attr{Key: a.Key, Value: h.maskValue(a.Value)}
}

// maskValue рекурсивно маскирует значения атрибутов
func (h *SecretMaskerHandler) maskValue(value slog.Value) slog.Value {
	switch value.Kind() {
	case slog.KindString:
		return slog.StringValue(h.maskSecrets(value.String()))
	case slog.KindAny:
		// Ошибки превращаем в строку: текст ошибки может содержать токен.
		if err, ok := value.Any().(error); ok {
			return slog.StringValue(h.maskSecrets(err.Error()))
		}
		return value
	case slog.KindLogValuer:
		return h.maskValue(value.Resolve())
	case slog.KindGroup:
		group := value.Group()
		masked := make([]slog.Attr, len(group))
		for i, attr := range group {
			masked[i] = h.maskAttr(attr)
		}
		return slog.GroupValue(masked...)
	default:
		return value
	}
}

// NewMaskedLogger создает новый экземпляр slog.Logger с маскировкой секретов
func NewMaskedLogger(handler slog.Handler, secrets ...string) *slog.Logger {
	return slog.New(NewSecretMaskerHandler(handler, secrets...))
}
