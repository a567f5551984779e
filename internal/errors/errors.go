package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingRegion     = errors.New("missing endpoint region")
	ErrUnknownRegion     = errors.New("invalid endpoint region")
	ErrIdentityProvider  = errors.New("identity provider error")
	ErrUnexpectedPayload = errors.New("unexpected response payload")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidIDToken    = errors.New("invalid id_token")
)

// UnknownRegionError is returned when a region key is not part of the endpoint table.
type UnknownRegionError struct {
	Region string
}

func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("invalid endpoint: %s", e.Region)
}

func (e *UnknownRegionError) Is(target error) bool {
	return target == ErrUnknownRegion
}

// ClientError reports an HTTP response with a status code of 400 or above.
// Body holds the parsed response payload; RawBody is kept when the payload
// could not be parsed.
type ClientError struct {
	StatusCode int
	Status     string
	Body       map[string]any
	RawBody    string
}

func (e *ClientError) Error() string {
	if msg, ok := e.Body["message"].(string); ok && msg != "" {
		return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, msg)
	}
	if msg, ok := e.Body["error"].(string); ok && msg != "" {
		return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("identity provider returned %d", e.StatusCode)
}

func (e *ClientError) Is(target error) bool {
	return target == ErrIdentityProvider
}

// OAuthError reports a protocol level refusal carried in the response body,
// possibly with a successful HTTP status.
type OAuthError struct {
	StatusCode  int
	Code        string
	Description string
	URI         string
	Body        map[string]any
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth error %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("oauth error %s", e.Code)
}

func (e *OAuthError) Is(target error) bool {
	return target == ErrIdentityProvider
}

// ParseError is returned when a successful response body is neither JSON nor form encoded.
type ParseError struct {
	StatusCode  int
	ContentType string
	Err         error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q response (status %d): %v", e.ContentType, e.StatusCode, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrUnexpectedPayload
}
