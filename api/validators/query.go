package validators

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	pkgerrors "github.com/lodgetix/ticket-inventory/pkg/errors"
)

var opaqueTokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// ParseQueryInt reads an optional bounded integer query parameter.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetail("field", key)
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryToken reads an optional URL-safe opaque token such as a page
// cursor, rejecting anything longer than maxLen or outside [A-Za-z0-9_-].
func ParseQueryToken(r *http.Request, key string, maxLen int) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if len(raw) > maxLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter too long").
			WithDetails(map[string]any{"field": key, "max": maxLen})
	}
	if !opaqueTokenRe.MatchString(raw) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter is malformed").WithDetail("field", key)
	}
	return raw, nil
}
