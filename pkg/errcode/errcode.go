// Package errcode names the error taxonomy of the platform (see spec §7)
// as typed sentinels so callers can classify failures with errors.Is
// instead of matching on message text.
package errcode

import "errors"

// Category identifies which of the platform's error taxonomies an
// error belongs to.
type Category string

const (
	CategoryParse      Category = "parse"
	CategoryTransport  Category = "transport"
	CategoryAuth       Category = "auth"
	CategoryRisk       Category = "risk"
	CategoryFatalConfig Category = "fatal_config"
)

var (
	// ErrParse marks a recoverable single-message decode failure: bad
	// header, bad payload, truncated frame. The parser drops the
	// message and continues; the connection stays open.
	ErrParse = errors.New("wire: parse error")

	// ErrTransport marks a failure that invalidates the current
	// session: socket, TLS handshake, or certificate verification
	// failure. The session disconnects and the reconnect policy
	// applies.
	ErrTransport = errors.New("feed: transport error")

	// ErrAuth marks an authentication failure: missing credentials,
	// non-200 response, unparseable token, or expired token past
	// refresh attempts. Surfaced through the auth callback; trading
	// start is blocked.
	ErrAuth = errors.New("auth: authentication error")

	// ErrFatalConfig marks an error that must stop the process:
	// production pointed at a test endpoint, or CSPRNG failure during
	// key/session-id generation.
	ErrFatalConfig = errors.New("config: fatal configuration error")
)

// Wrap annotates err with msg and associates it with category for
// later classification, preserving errors.Is/As against the
// category's sentinel.
func Wrap(category Category, msg string, err error) error {
	sentinel := sentinelFor(category)
	if err == nil {
		return &categorized{category: category, msg: msg, sentinel: sentinel}
	}
	return &categorized{category: category, msg: msg, sentinel: sentinel, cause: err}
}

func sentinelFor(c Category) error {
	switch c {
	case CategoryParse:
		return ErrParse
	case CategoryTransport:
		return ErrTransport
	case CategoryAuth:
		return ErrAuth
	case CategoryFatalConfig:
		return ErrFatalConfig
	default:
		return nil
	}
}

type categorized struct {
	category Category
	msg      string
	sentinel error
	cause    error
}

func (c *categorized) Error() string {
	if c.cause != nil {
		return c.msg + ": " + c.cause.Error()
	}
	return c.msg
}

func (c *categorized) Unwrap() error {
	return c.cause
}

func (c *categorized) Is(target error) bool {
	return target == c.sentinel
}
