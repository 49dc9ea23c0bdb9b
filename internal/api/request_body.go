package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// maxJSONBodyBytes bounds a JSON request body before json.Decode ever sees
// it, independent of any domain-specific payload size check a handler
// applies afterward (e.g. code length).
const maxJSONBodyBytes = 2 * 1024 * 1024

// decodeJSONBody decodes r.Body into dst, rejecting bodies over
// maxJSONBodyBytes and any trailing garbage after the JSON value.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}
