package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/enp6s0/dspgate/pkg/util"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Logger.Warnf("failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	util.Logger.Warnf("request failed (%d): %v", status, err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSONBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return fmt.Errorf("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
