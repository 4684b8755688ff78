package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrNotFound            = errors.New("not found")
	ErrExists              = errors.New("already exists")
	ErrCorrupt             = errors.New("corrupt record")
	ErrFileMissing         = errors.New("file missing")
	ErrNotClassified       = errors.New("not classified")
	ErrNoScores            = errors.New("no scores")
	ErrInvalidFilename     = errors.New("invalid filename")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamHTTP        = errors.New("upstream http error")
	ErrBadUpstreamResponse = errors.New("bad upstream response")
	ErrConfiguration       = errors.New("configuration error")
	ErrInternal            = errors.New("internal error")
)

// Wire codes reported to API clients and persisted in classification errors.
const (
	CodeBadRequest          = "bad_request"
	CodeNotFound            = "not_found"
	CodeExists              = "already_exists"
	CodeCorrupt             = "corrupt_record"
	CodeFileMissing         = "file_missing"
	CodeNotClassified       = "not_classified"
	CodeNoScores            = "no_scores"
	CodeInvalidFilename     = "invalid_filename"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamHTTP        = "upstream_http_error"
	CodeBadUpstreamResponse = "bad_upstream_response"
	CodeInternal            = "internal_error"
)

var markerCodes = []struct {
	marker error
	code   string
	status int
}{
	{ErrBadRequest, CodeBadRequest, http.StatusBadRequest},
	{ErrConfiguration, CodeInternal, http.StatusInternalServerError},
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrExists, CodeExists, http.StatusConflict},
	{ErrCorrupt, CodeCorrupt, http.StatusInternalServerError},
	{ErrFileMissing, CodeFileMissing, http.StatusConflict},
	{ErrNotClassified, CodeNotClassified, http.StatusConflict},
	{ErrNoScores, CodeNoScores, http.StatusConflict},
	{ErrInvalidFilename, CodeInvalidFilename, http.StatusBadRequest},
	{ErrUpstreamUnavailable, CodeUpstreamUnavailable, http.StatusBadGateway},
	{ErrUpstreamHTTP, CodeUpstreamHTTP, http.StatusBadGateway},
	{ErrBadUpstreamResponse, CodeBadUpstreamResponse, http.StatusBadGateway},
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Code maps an error to its wire code. Unmarked errors report internal_error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range markerCodes {
		if errors.Is(err, entry.marker) {
			return entry.code
		}
	}
	return CodeInternal
}

// HTTPStatus maps an error to the HTTP status the API responds with.
func HTTPStatus(err error) int {
	for _, entry := range markerCodes {
		if errors.Is(err, entry.marker) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

// IsUpstream reports whether err originates from the classifier service.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamHTTP) ||
		errors.Is(err, ErrBadUpstreamResponse)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
