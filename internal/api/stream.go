package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashby/guidepost/internal/session"
	"github.com/ashby/guidepost/internal/stream"
	"github.com/ashby/guidepost/internal/upstream"
)

// Explore handles POST /api/travel/explore.
//
// The upstream content stream is relayed to the client line by line
// while the fragments accumulate on a search unit in the draft session.
// The response uses the same wire format as the upstream: "data: " JSON
// lines terminated by a "data: [DONE]" sentinel.
//
//	@Summary		Stream destination research into a draft session
//	@Tags			travel
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			body	body	ExploreRequest	true	"Explore request"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/explore [post]
func (h *Handler) Explore(w http.ResponseWriter, r *http.Request) {
	var req ExploreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.DraftID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("draftId is required"))
		return
	}

	sess, err := h.sessions.Session(req.DraftID, req.City)
	if err != nil {
		slog.Error("open session failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	body, err := h.upstream.Explore(r.Context(), upstream.ExploreRequest{City: req.City, Query: req.Query})
	if err != nil {
		slog.Error("upstream explore failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("upstream unavailable"))
		return
	}
	defer body.Close()

	unit := sess.NewUnit(req.Query, req.ParentID)
	if h.broker != nil {
		h.broker.PublishUnitEvent("streaming", sess.ID(), unit.ID)
	}

	h.relay(w, sess, unit.ID, body)
}

// GenerateTrip handles POST /api/travel/generate-trip.
//
// Itinerary streams are relayed without a session: the client owns the
// accumulated text and may submit it as a guide afterwards.
//
//	@Summary		Stream a trip itinerary
//	@Tags			travel
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			body	body	TripRequest	true	"Trip request"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/generate-trip [post]
func (h *Handler) GenerateTrip(w http.ResponseWriter, r *http.Request) {
	var req TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	body, err := h.upstream.GenerateTrip(r.Context(), upstream.TripRequest{
		Description: req.Description,
		Duration:    req.Duration,
		Interests:   req.Interests,
		TravelStyle: req.TravelStyle,
	})
	if err != nil {
		slog.Error("upstream trip failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody("upstream unavailable"))
		return
	}
	defer body.Close()

	h.relay(w, nil, "", body)
}

// relay pumps decoded events from an upstream stream to the client,
// appending content fragments to the session unit when one is attached.
// The stream always terminates with the done sentinel, whatever ended it.
func (h *Handler) relay(w http.ResponseWriter, sess *session.Session, unitID string, body io.Reader) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(data)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	reader := stream.NewReader(body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Warn("stream read failed", slog.String("error", err.Error()))
				emit(map[string]string{"error": "stream interrupted"})
			}
			break
		}

		switch ev.Kind {
		case stream.KindContent:
			if sess != nil {
				sess.Append(unitID, ev.Content)
				if h.broker != nil {
					h.broker.PublishUnitEvent("fragment", sess.ID(), unitID)
				}
			}
			emit(map[string]string{"content": ev.Content})

		case stream.KindError:
			emit(map[string]string{"error": ev.Err})

		case stream.KindDone:
			// Sentinel written below, after finalization.
		}

		if ev.Kind == stream.KindDone || ev.Kind == stream.KindError {
			break
		}
	}

	if sess != nil {
		sess.Finalize(unitID)
		if err := h.sessions.Persist(sess); err != nil {
			slog.Error("persist draft failed", slog.String("id", sess.ID()), slog.String("error", err.Error()))
		}
		if h.broker != nil {
			h.broker.PublishUnitEvent("done", sess.ID(), unitID)
		}
		if h.mirror != nil {
			h.mirror.DraftSnapshot(sess.Snapshot())
		}
	}

	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}
