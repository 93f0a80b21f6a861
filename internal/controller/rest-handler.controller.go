package controller

import (
	"errors"
	"net/http"

	"github.com/sharetube/cowatch/internal/service/probe"
	"github.com/sharetube/cowatch/pkg/rest"
)

func (c controller) getHealth(w http.ResponseWriter, r *http.Request) {
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{
		"ok":                   true,
		"now":                  c.now().UnixMilli(),
		"sync_drift_threshold": c.syncDriftThreshold,
	})
}

func (c controller) getLobbyRooms(w http.ResponseWriter, r *http.Request) {
	lobby := c.lobbyUpdate(c.roomService.GetLobbyRooms(r.Context()).Rooms)
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{
		"rooms":       lobby.Rooms,
		"server_time": lobby.ServerTime,
	})
}

type estimateDurationRequest struct {
	URL  string `json:"url" validate:"required,http_url"`
	Size int64  `json:"size" validate:"gt=0"`
	Key  string `json:"key" validate:"max=512"`
}

func (c controller) estimateDuration(w http.ResponseWriter, r *http.Request) {
	var req estimateDurationRequest

	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "invalid request", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	estimateResp, err := c.probeService.EstimateDuration(r.Context(), &probe.EstimateDurationParams{
		Key:  req.Key,
		URL:  req.URL,
		Size: req.Size,
	})
	if errors.Is(err, probe.ErrHostNotAllowed) {
		c.logger.InfoContext(r.Context(), "media url rejected", "url", req.URL)
		rest.WriteJSON(w, http.StatusForbidden, rest.Envelope{"error": err.Error()})
		return
	}
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to estimate duration", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, estimateResp)
}
