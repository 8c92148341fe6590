package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// RefKind определяет вид ссылки на удаленную сущность.
type RefKind string

const (
	RefNumericID RefKind = "numeric_id"
	RefHandle    RefKind = "handle"
	RefLink      RefKind = "link"
	RefInvite    RefKind = "invite"
)

// RemoteEntityRef - "свободная" ссылка на чат или канал, как ее передал пользователь.
// Никогда не сохраняется в БД.
type RemoteEntityRef struct {
	Kind RefKind
	// Value содержит нормализованное значение: число в десятичной записи,
	// имя без '@' или хеш приглашения.
	Value string
	// ID заполнен только для RefNumericID.
	ID int64
}

// String возвращает ссылку в виде, пригодном для логов и сообщений пользователю.
func (r RemoteEntityRef) String() string {
	switch r.Kind {
	case RefHandle, RefLink:
		return "@" + r.Value
	case RefInvite:
		return "t.me/+" + r.Value
	default:
		return r.Value
	}
}

var (
	handleRegexp = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{3,31}$`)
	inviteRegexp = regexp.MustCompile(`^[a-zA-Z0-9_-]{8,}$`)
)

// RefFromID создает ссылку по числовому идентификатору.
func RefFromID(id int64) RemoteEntityRef {
	return RemoteEntityRef{Kind: RefNumericID, Value: strconv.FormatInt(id, 10), ID: id}
}

// ParseRef разбирает строку в RemoteEntityRef.
// Поддерживаются: числовые ID (в том числе с префиксом -100), @username, username,
// ссылки вида t.me/username и пригласительные ссылки t.me/+HASH, t.me/joinchat/HASH.
func ParseRef(raw string) (RemoteEntityRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return RemoteEntityRef{}, fmt.Errorf("%w: empty reference", ErrInvalidRef)
	}

	if looksNumeric(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id == 0 {
			return RemoteEntityRef{}, fmt.Errorf("%w: malformed numeric id %q", ErrInvalidRef, raw)
		}
		return RefFromID(id), nil
	}

	if strings.HasPrefix(s, "@") {
		name := strings.TrimPrefix(s, "@")
		if !handleRegexp.MatchString(name) {
			return RemoteEntityRef{}, fmt.Errorf("%w: malformed handle %q", ErrInvalidRef, raw)
		}
		return RemoteEntityRef{Kind: RefHandle, Value: name}, nil
	}

	if isLink(s) {
		return parseLink(s)
	}

	if handleRegexp.MatchString(s) {
		return RemoteEntityRef{Kind: RefHandle, Value: s}, nil
	}

	return RemoteEntityRef{}, fmt.Errorf("%w: unrecognised reference %q", ErrInvalidRef, raw)
}

func looksNumeric(s string) bool {
	body := strings.TrimPrefix(s, "-")
	if body == "" {
		return false
	}
	for _, r := range body {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isLink(s string) bool {
	lower := strings.ToLower(s)
	for _, prefix := range []string{"https://", "http://", "t.me/", "telegram.me/", "tg://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func parseLink(s string) (RemoteEntityRef, error) {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return RemoteEntityRef{}, fmt.Errorf("%w: malformed link %q: %v", ErrInvalidRef, s, err)
	}

	// tg://resolve?domain=name
	if u.Scheme == "tg" {
		if domain := u.Query().Get("domain"); handleRegexp.MatchString(domain) {
			return RemoteEntityRef{Kind: RefLink, Value: domain}, nil
		}
		if invite := u.Query().Get("invite"); inviteRegexp.MatchString(invite) {
			return RemoteEntityRef{Kind: RefInvite, Value: invite}, nil
		}
		return RemoteEntityRef{}, fmt.Errorf("%w: unsupported tg link %q", ErrInvalidRef, s)
	}

	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	if host != "t.me" && host != "telegram.me" && host != "telegram.dog" {
		return RemoteEntityRef{}, fmt.Errorf("%w: not a telegram link %q", ErrInvalidRef, s)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return RemoteEntityRef{}, fmt.Errorf("%w: link without path %q", ErrInvalidRef, s)
	}

	switch {
	case strings.HasPrefix(parts[0], "+"):
		hash := strings.TrimPrefix(parts[0], "+")
		if !inviteRegexp.MatchString(hash) {
			return RemoteEntityRef{}, fmt.Errorf("%w: malformed invite link %q", ErrInvalidRef, s)
		}
		return RemoteEntityRef{Kind: RefInvite, Value: hash}, nil
	case parts[0] == "joinchat":
		if len(parts) < 2 || !inviteRegexp.MatchString(parts[1]) {
			return RemoteEntityRef{}, fmt.Errorf("%w: malformed invite link %q", ErrInvalidRef, s)
		}
		return RemoteEntityRef{Kind: RefInvite, Value: parts[1]}, nil
	case parts[0] == "s" && len(parts) > 1:
		// Превью публичного канала: t.me/s/name
		parts = parts[1:]
	}

	if !handleRegexp.MatchString(parts[0]) {
		return RemoteEntityRef{}, fmt.Errorf("%w: malformed link %q", ErrInvalidRef, s)
	}
	return RemoteEntityRef{Kind: RefLink, Value: parts[0]}, nil
}
