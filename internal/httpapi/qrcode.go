package httpapi

import (
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// handleQRCode serves a scannable link to the visitor landing page.
func (h *Handler) handleQRCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	png, err := qrcode.Encode(h.publicURL+"/visitor", qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, requestIDFromRequest(r), http.StatusInternalServerError, "internal_error", "could not render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
