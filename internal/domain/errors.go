package domain

import (
	"context"
	"errors"
	"fmt"
)

// ParseErrorKind classifies why share text could not be resolved
type ParseErrorKind string

const (
	ParseNoURLFound      ParseErrorKind = "no_url_found"
	ParseUnknownPlatform ParseErrorKind = "unknown_platform"
	ParseIDNotFound      ParseErrorKind = "id_not_found"
)

// ParseError is returned by link resolution
type ParseError struct {
	Kind  ParseErrorKind
	Input string
}

func (e *ParseError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("parse link: %s", e.Kind)
	}
	return fmt.Sprintf("parse link: %s: %q", e.Kind, e.Input)
}

// Is matches any ParseError of the same kind
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks against a parse error kind.
var (
	ErrNoURLFound      = &ParseError{Kind: ParseNoURLFound}
	ErrUnknownPlatform = &ParseError{Kind: ParseUnknownPlatform}
	ErrIDNotFound      = &ParseError{Kind: ParseIDNotFound}
)

// ErrLoginRequired means the platform withheld content until the user logs in.
// It suspends the link rather than failing it.
var ErrLoginRequired = errors.New("login required")

// FetchErrorKind classifies metadata fetch failures
type FetchErrorKind string

const (
	FetchNetwork     FetchErrorKind = "network"
	FetchParse       FetchErrorKind = "parse"
	FetchRateLimited FetchErrorKind = "rate_limited"
)

// FetchError is returned when metadata could not be retrieved
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch metadata (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DownloadErrorKind classifies media download failures
type DownloadErrorKind string

const (
	DownloadNetwork DownloadErrorKind = "network"
	DownloadIO      DownloadErrorKind = "io"
)

// DownloadError is returned when the media file could not be written
type DownloadError struct {
	Kind DownloadErrorKind
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download media (%s): %v", e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ErrToolUnavailable means the external media tool is not installed. Steps
// that depend on it are skipped, never fatal.
var ErrToolUnavailable = errors.New("external media tool unavailable")

// ErrTranscriptUnavailable means no subtitle track or recognized speech exists
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

// CategoryOf maps an error to the failure category reported in batch summaries
func CategoryOf(err error) string {
	if err == nil {
		return ""
	}

	var parseErr *ParseError
	var fetchErr *FetchError
	var downloadErr *DownloadError

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrLoginRequired):
		return "login_required"
	case errors.As(err, &parseErr):
		return "parse:" + string(parseErr.Kind)
	case errors.As(err, &fetchErr):
		return "fetch:" + string(fetchErr.Kind)
	case errors.As(err, &downloadErr):
		return "download:" + string(downloadErr.Kind)
	case errors.Is(err, ErrToolUnavailable):
		return "tool_unavailable"
	default:
		return "internal"
	}
}
