// Package api provides the JSON handlers behind /api.
package api

import (
	"net/http"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeValidationError reports each failed field of a request body.
func writeValidationError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: "Validation failed"}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			resp.Details = append(resp.Details, fe.Field()+" failed "+fe.Tag())
		}
	} else {
		resp.Details = []string{err.Error()}
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

type labelResponse struct {
	Label gesture.Label `json:"label"`
	Type  gesture.Type  `json:"type"`
}

// LabelsHandler serves GET /api/labels: every label a binding may use.
func LabelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	labels := gesture.BindableLabels()
	resp := struct {
		Labels []labelResponse `json:"labels"`
	}{Labels: make([]labelResponse, 0, len(labels))}
	for _, l := range labels {
		resp.Labels = append(resp.Labels, labelResponse{Label: l, Type: l.Type()})
	}
	writeJSON(w, http.StatusOK, resp)
}
