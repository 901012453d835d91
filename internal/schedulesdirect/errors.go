package schedulesdirect

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigError.
	ErrConfiguration = errors.New("sd: configuration")
	// ErrAuthentication matches every *AuthError.
	ErrAuthentication = errors.New("sd: authentication failed")
)

// ConfigError reports a missing account setting (username, password, lineup id)
// or a missing token on a path that cannot proceed without one.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "sd: " + e.Msg
	}
	return fmt.Sprintf("sd: %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// AuthError is a login the provider refused. It is never retried.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sd: login refused (code %d): %s", e.Code, e.Message)
}

func (e *AuthError) Is(target error) bool { return target == ErrAuthentication }

// StatusError is an HTTP failure status or an SD error payload.
// Code and Message come from the SD body when one was returned.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Code       int
	Message    string
}

func (e *StatusError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("sd %s: http %d, code %d: %s", e.Endpoint, e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("sd %s: http %d: %s", e.Endpoint, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("sd %s: http %d", e.Endpoint, e.StatusCode)
	}
}

// Temporary reports whether a retry later could succeed (server side or rate limited).
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

func errMissing(field string) error {
	return &ConfigError{Field: field, Msg: "required"}
}

var errNoToken = &ConfigError{Field: "token", Msg: "authentication required"}
