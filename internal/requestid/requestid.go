// Package requestid generates and validates the request IDs threaded through
// every query and trigger operation for end-to-end tracing.
//
// Format: req_<epoch_millis>_<8-hex-suffix>, e.g. "req_1718000000123_9f2b41aa".
package requestid

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const prefix = "req"

// New returns a fresh request ID.
func New() string {
	ms := time.Now().UnixMilli()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return prefix + "_" + strconv.FormatInt(ms, 10) + "_" + suffix
}

// Valid reports whether id has the req_<millis>_<suffix> shape.
func Valid(id string) bool {
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != prefix || parts[2] == "" {
		return false
	}
	if _, err := strconv.ParseInt(parts[1], 10, 64); err != nil {
		return false
	}
	return true
}

// OrNew returns id when it is a valid request ID, otherwise a new one.
// Callers may supply their own ID; everything else gets generated.
func OrNew(id string) string {
	if Valid(id) {
		return id
	}
	return New()
}
