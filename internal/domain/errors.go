package domain

import "errors"

// Ошибки сессии.
var (
	ErrNoSession         = errors.New("no session bound to principal")
	ErrNotAuthorized     = errors.New("session is not authorized")
	ErrChallengeRequired = errors.New("session requires interactive second factor")
	ErrTransientConnect  = errors.New("failed to connect telegram client")
)

// Ошибки разрешения ссылки на сущность.
var (
	ErrNotFound     = errors.New("remote entity not found")
	ErrAccessDenied = errors.New("access to remote entity denied")
	ErrInvalidRef   = errors.New("invalid entity reference")
)

// Ошибки протокола.
var (
	// ErrRateLimited возвращается, только если бюджет повторов FLOOD_WAIT исчерпан.
	ErrRateLimited     = errors.New("rate limited by telegram")
	ErrRemoteTransient = errors.New("transient telegram error")
	ErrUnsupportedPeer = errors.New("entity is not a group or channel")
)

// Ошибки хранилища.
var (
	ErrConstraintViolation = errors.New("datastore constraint violation")
	ErrConnectionLost      = errors.New("datastore connection lost")
)

// ErrRunInProgress возвращается, когда для принципала уже выполняется сбор.
var ErrRunInProgress = errors.New("collection already in progress for principal")

// IsSessionError сообщает, относится ли ошибка к классу ошибок сессии.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrChallengeRequired) ||
		errors.Is(err, ErrTransientConnect)
}

// IsResolutionError сообщает, относится ли ошибка к классу ошибок разрешения сущности.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrInvalidRef)
}
