// payload.go validates registry artifact payloads uploaded by seller CLIs.
package validation

import (
	"encoding/json"
	"fmt"
)

// MaxPayloadBytes bounds artifact payload size. Component definitions are a
// manifest plus source files, so a megabyte is already generous.
const MaxPayloadBytes = 1 << 20

// ValidateArtifactPayload checks that an uploaded artifact payload is
// non-empty, within the size bound, and a well-formed JSON object. The
// contents are otherwise opaque to the server.
func ValidateArtifactPayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("artifact payload is required")
	}
	if len(payload) > MaxPayloadBytes {
		return fmt.Errorf("artifact payload exceeds %d bytes", MaxPayloadBytes)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return fmt.Errorf("artifact payload is not a JSON object: %w", err)
	}
	return nil
}
