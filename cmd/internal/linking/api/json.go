package linkapi

import (
	"encoding/json"
	"net/http"
)

type pairResponse struct {
	Status bool   `json:"status"`
	Code   string `json:"code"`
}

type qrResponse struct {
	Status bool   `json:"status"`
	QRImg  string `json:"qr_img"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports a flow failure. Failures are still 200: the body carries the outcome.
func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, errorResponse{Error: msg})
}
