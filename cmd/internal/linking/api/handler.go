// Package linkapi exposes the pairing-code and QR linking flows over HTTP.
package linkapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"walink/cmd/internal/linking"
)

// User-facing failure messages.
const (
	MsgNumberRequired    = "Number is required"
	MsgAlreadyRegistered = "Already registered"
	MsgConnectionFailed  = "Connection Failed. Check number format."
	MsgQRFailed          = "QR Generation Failed"
)

// PairingRunner runs one pairing-code flow.
type PairingRunner interface {
	Run(ctx context.Context, phone string) (string, error)
}

// QRRunner runs one QR flow.
type QRRunner interface {
	Run(ctx context.Context) (linking.QRImage, error)
}

// Handler serves GET /pair and GET /qr.
type Handler struct {
	log  *slog.Logger
	pair PairingRunner
	qr   QRRunner
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, pair PairingRunner, qr QRRunner) (*Handler, error) {
	if pair == nil || qr == nil {
		return nil, errors.New("linkapi: pairing and qr flows are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, pair: pair, qr: qr}, nil
}

// Register wires linking routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/pair", h.handlePair)
	mux.HandleFunc("/qr", h.handleQR)
}

func (h *Handler) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	code, err := h.pair.Run(r.Context(), r.URL.Query().Get("number"))
	if err != nil {
		msg := pairErrorMessage(err)
		h.log.Info("http.pair.fail", "err", err, "msg", msg)
		writeError(w, msg)
		return
	}
	writeJSON(w, http.StatusOK, pairResponse{Status: true, Code: code})
}

func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	img, err := h.qr.Run(r.Context())
	if err != nil {
		h.log.Info("http.qr.fail", "err", err)
		writeError(w, MsgQRFailed)
		return
	}
	writeJSON(w, http.StatusOK, qrResponse{Status: true, QRImg: img.DataURL})
}

func pairErrorMessage(err error) string {
	switch {
	case errors.Is(err, linking.ErrInvalidInput):
		return MsgNumberRequired
	case errors.Is(err, linking.ErrAlreadyRegistered):
		return MsgAlreadyRegistered
	default:
		return MsgConnectionFailed
	}
}
