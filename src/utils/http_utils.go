package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/username/steuerrechner/backend/src/logger"
)

// GenerateETag derives an entity tag from the JSON encoding of payload.
// Equal payloads always produce the same tag, so clients can revalidate
// cached year results cheaply.
func GenerateETag(payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload for etag: %w", err)
	}
	sum := sha256.Sum256(encoded)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}

// SendJSONError writes an error response as {"error": message}.
func SendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if logger.L != nil {
		logger.L.Warn("sending error response", "message", message, "status", statusCode)
	}
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
