package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// transparentGIF is a 1x1 transparent pixel.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func (s *Server) handleTrackOpen(w http.ResponseWriter, r *http.Request) {
	fields, err := s.composer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), 4)
	if err != nil || len(fields) != 4 {
		http.Error(w, "invalid token", http.StatusBadRequest)
		return
	}

	logger.Debug("open tracked", "tenant", fields[0], "campaign", fields[1], "recipient", fields[2])

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(transparentGIF)
}

func (s *Server) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	fields, err := s.composer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), 5)
	if err != nil || len(fields) != 5 {
		http.Error(w, "invalid token", http.StatusBadRequest)
		return
	}

	logger.Debug("click tracked", "tenant", fields[0], "campaign", fields[1], "recipient", fields[2])
	http.Redirect(w, r, fields[4], http.StatusFound)
}

// handleUnsubscribe honors both the browser link and the one-click POST
// from List-Unsubscribe-Post. Unsubscribing suppresses the address.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	fields, err := s.composer.Decode(chi.URLParam(r, "data"), chi.URLParam(r, "sig"), 3)
	if err != nil || len(fields) != 3 {
		http.Error(w, "invalid token", http.StatusBadRequest)
		return
	}

	email := fields[2]
	if err := s.suppressions.Add(r.Context(), email, domain.ReasonManual, domain.SourceManual); err != nil {
		respondError(w, http.StatusInternalServerError, "unsubscribe failed")
		return
	}

	logger.Info("unsubscribed", "recipient", email, "tenant", fields[0], "campaign", fields[1])
	if r.Method == http.MethodPost {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><p>You have been unsubscribed.</p></body></html>"))
}
