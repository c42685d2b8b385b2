package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/lineup"
	"github.com/ovalfantasy/ovalsync/internal/scrape"
	"github.com/ovalfantasy/ovalsync/internal/socialstats"
)

// Kinds used in error bodies in addition to the scrape failure kinds.
const (
	kindInvalidRequest = "invalid_request"
	kindUnauthorized   = "unauthorized"
	kindNotFound       = "not_found"
	kindUnavailable    = "unavailable"
	kindTimeout        = "timeout"
	kindUnknown        = string(scrape.KindUnknown)
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeServiceError maps a service error onto a status and JSON body.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lineup.ErrInvalidMatchID), errors.Is(err, socialstats.ErrInvalidOptions):
		writeError(w, s.logger, http.StatusBadRequest, kindInvalidRequest, err.Error())
		return
	case errors.Is(err, socialstats.ErrStoreUnavailable):
		writeError(w, s.logger, http.StatusServiceUnavailable, kindUnavailable, err.Error())
		return
	}
	kind := scrape.KindOf(err)
	status := scrape.HTTPStatus(kind)
	msg := err.Error()
	if kind == scrape.KindUnknown {
		s.logger.Error("request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeError(w, s.logger, status, string(kind), msg)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	body, err := sonic.Marshal(payload)
	if err != nil {
		logger.Error("marshal response", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"error":"internal server error","kind":"unknown"}`)
	}
	writeBody(w, logger, status, body)
}

func writeBody(w http.ResponseWriter, logger *zap.Logger, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debug("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, kind, msg string) {
	writeJSON(w, logger, status, errorBody{Error: msg, Kind: kind})
}
