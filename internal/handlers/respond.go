package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	applog "cafepos/internal/log"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		applog.Error(context.Background(), "failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

var errNoIdentifier = errors.New("no resource identifier")

// resourceID parses the id following prefix in the URL path and returns any
// further path segments. errNoIdentifier reports a bare collection path.
func resourceID(r *http.Request, prefix string) (uint, []string, error) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if path == "" {
		return 0, nil, errNoIdentifier
	}
	segments := strings.Split(path, "/")
	value, err := strconv.ParseUint(segments[0], 10, 64)
	if err != nil || value == 0 {
		applog.Debug(r.Context(), "invalid resource identifier", "path", r.URL.Path, "identifier", segments[0])
		return 0, nil, fmt.Errorf("invalid identifier %q", segments[0])
	}
	return uint(value), segments[1:], nil
}

func parseOptionalUint(value string) (*uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid identifier %q", value)
	}
	id := uint(parsed)
	return &id, nil
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	w.WriteHeader(http.StatusMethodNotAllowed)
}
