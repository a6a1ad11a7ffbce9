package sqlitex

import "log/slog"

// OpenOption configures a Session at construction time.
type OpenOption func(*Session)

// WithLogger overrides the structured logger used for session-lifecycle
// events.
func WithLogger(l *slog.Logger) OpenOption {
	return func(s *Session) { s.SetLogger(l) }
}

// WithProgressHandler installs fn as the session's progress callback
// immediately after opening.
func WithProgressHandler(fn func() bool) OpenOption {
	return func(s *Session) { s.SetProgressHandler(fn) }
}

// Open constructs a Session and opens uri on it, applying opts in order.
// See Session.Open for the URI grammar and collation registration.
func Open(uri string, opts ...OpenOption) (*Session, error) {
	s := NewSession()
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Open(uri); err != nil {
		return nil, err
	}
	return s, nil
}
