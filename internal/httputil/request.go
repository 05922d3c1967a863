package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ParseJSON decodes the request body into dest. Bodies are capped at
// 10MB; a note diff pasted into a round input stays well under that.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	// MaxBytesReader needs w so oversized bodies get a proper 413
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)

	decoder := json.NewDecoder(r.Body)
	// DisallowUnknownFields is intentionally not used; round inputs
	// carry kind-specific optional fields and validation happens
	// downstream in the services.

	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}
