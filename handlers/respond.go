package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// writeJSON writes a JSON payload with the permissive CORS header every
// addon resource requires.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// cacheHeader renders a shared-cache Cache-Control value. Zero
// components are omitted; an all-zero policy yields "" so no header is
// emitted at all.
func cacheHeader(maxAge, staleRevalidate, staleError time.Duration) string {
	var parts []string
	if maxAge > 0 {
		parts = append(parts, fmt.Sprintf("max-age=%d", int(maxAge.Seconds())))
	}
	if staleRevalidate > 0 {
		parts = append(parts, fmt.Sprintf("stale-while-revalidate=%d", int(staleRevalidate.Seconds())))
	}
	if staleError > 0 {
		parts = append(parts, fmt.Sprintf("stale-if-error=%d", int(staleError.Seconds())))
	}
	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, "public")
	return strings.Join(parts, ", ")
}

func setCacheControl(w http.ResponseWriter, maxAge, staleRevalidate, staleError time.Duration) {
	if value := cacheHeader(maxAge, staleRevalidate, staleError); value != "" {
		w.Header().Set("Cache-Control", value)
	}
}
