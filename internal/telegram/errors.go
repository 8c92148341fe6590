package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/gotd/td/tgerr"

	"telegram-intel/internal/domain"
)

var (
	// ErrFloodWaitActive возвращается, когда клиент не выполняет запрос из-за активного FLOOD_WAIT.
	ErrFloodWaitActive = errors.New("client is in flood wait")
	// floodWaitRegex разбирает длительность ожидания из текста ошибки,
	// если ошибка пришла не в виде *tgerr.Error (например, обернута строкой).
	floodWaitRegex = regexp.MustCompile(`FLOOD_WAIT(?:_| \()(\d+)`)
)

// Коды ошибок протокола, означающие отказ в доступе.
var accessDeniedTypes = []string{
	"CHANNEL_PRIVATE",
	"CHAT_ADMIN_REQUIRED",
	"USER_NOT_PARTICIPANT",
	"CHAT_FORBIDDEN",
	"CHANNEL_PUBLIC_GROUP_NA",
}

// Коды ошибок протокола, означающие отсутствие сущности.
var notFoundTypes = []string{
	"USERNAME_NOT_OCCUPIED",
	"CHANNEL_INVALID",
	"CHAT_ID_INVALID",
	"PEER_ID_INVALID",
	"INVITE_HASH_EXPIRED",
}

// Коды ошибок протокола, означающие синтаксически неверную ссылку.
var invalidRefTypes = []string{
	"USERNAME_INVALID",
	"INVITE_HASH_INVALID",
	"INVITE_HASH_EMPTY",
}

// floodWaitActiveError возвращается оберткой клиента, пока действует ранее полученный FLOOD_WAIT.
type floodWaitActiveError struct {
	remaining time.Duration
}

func (e *floodWaitActiveError) Error() string {
	return fmt.Sprintf("%s: %s remaining", ErrFloodWaitActive, e.remaining)
}

func (e *floodWaitActiveError) Unwrap() error { return ErrFloodWaitActive }

// AsFloodWait извлекает требуемую длительность ожидания из ошибки FLOOD_WAIT.
func AsFloodWait(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return d, true
	}
	var active *floodWaitActiveError
	if errors.As(err, &active) {
		return active.remaining, true
	}

	matches := floodWaitRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0, false
	}
	seconds, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// IsAccessDenied сообщает, что удаленная сторона отказала в доступе к сущности.
func IsAccessDenied(err error) bool {
	return errors.Is(err, domain.ErrAccessDenied) || tgerr.Is(err, accessDeniedTypes...)
}

// IsNotFound сообщает, что сущность не существует.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || tgerr.Is(err, notFoundTypes...)
}

// IsInvalidRef сообщает, что ссылка отвергнута как синтаксически неверная.
func IsInvalidRef(err error) bool {
	return errors.Is(err, domain.ErrInvalidRef) || tgerr.Is(err, invalidRefTypes...)
}

// IsChallenge сообщает, что для входа требуется пароль второго фактора.
func IsChallenge(err error) bool {
	return tgerr.Is(err, "SESSION_PASSWORD_NEEDED")
}

// IsUnauthorized сообщает, что ключ сессии недействителен.
func IsUnauthorized(err error) bool {
	return tgerr.Is(err, "AUTH_KEY_UNREGISTERED", "AUTH_KEY_INVALID", "SESSION_REVOKED", "SESSION_EXPIRED", "USER_DEACTIVATED")
}

// Classify оборачивает ошибку протокола доменной ошибкой подходящего класса.
// Ошибки FLOOD_WAIT возвращаются без изменений: их обрабатывает вызывающий код.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsFloodWait(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrAccessDenied),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInvalidRef),
		errors.Is(err, domain.ErrRemoteTransient):
		return err
	case IsAccessDenied(err):
		return fmt.Errorf("%w: %w", domain.ErrAccessDenied, err)
	case IsNotFound(err):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case IsInvalidRef(err):
		return fmt.Errorf("%w: %w", domain.ErrInvalidRef, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrRemoteTransient, err)
	}
}
