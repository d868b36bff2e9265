package common

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// APIResponse is the envelope of every successful API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"requestId,omitempty"`
	Count     *int   `json:"count,omitempty"`
	Days      int    `json:"days,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// RespondJSON writes data in the standard envelope
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	RespondWithMeta(w, status, data, nil)
}

// RespondWithMeta writes data and metadata in the standard envelope
func RespondWithMeta(w http.ResponseWriter, status int, data interface{}, meta *MetaInfo) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// Count wraps n for MetaInfo.Count
func Count(n int) *int {
	return &n
}

// ParseJSONBody decodes a JSON request body of at most maxBytes, rejecting
// unknown fields.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// QueryInt reads an optional integer query parameter. ok is false when the
// parameter is present but not an integer.
func QueryInt(r *http.Request, name string, fallback int) (value int, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
