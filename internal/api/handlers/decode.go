package handlers

import (
	"bytes"
	"encoding/json"

	"plotwatch/internal/types"
)

// decodeEvent decodes an already-read body with the same strictness as
// core.DecodeJSON.
func decodeEvent(payload []byte, dst *types.SessionEvent) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed event payload", err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "event body must contain a single JSON object", nil)
	}
	return nil
}
