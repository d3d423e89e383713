// Package handlers adapts the monitoring and messaging operations to HTTP.
//
// Handlers decode and validate input, call one service method and write the
// result through the core response envelope. They hold no state of their
// own and perform no authentication; the transport event webhook verifies
// its caller by payload signature.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"plotwatch/internal/types"
)

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidID,
			fmt.Sprintf("%s must be a positive integer", name),
			err,
			map[string]any{"param": name, "value": raw},
		)
	}
	return id, nil
}
