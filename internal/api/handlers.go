package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ashby/guidepost/internal/apperr"
	"github.com/ashby/guidepost/internal/guideservice"
	"github.com/ashby/guidepost/internal/mirror"
	"github.com/ashby/guidepost/internal/models"
	"github.com/ashby/guidepost/internal/parser"
	"github.com/ashby/guidepost/internal/session"
	"github.com/ashby/guidepost/internal/sse"
	"github.com/ashby/guidepost/internal/upstream"
)

// Handler holds API route handlers.
type Handler struct {
	sessions *session.Manager
	guides   *guideservice.Service
	upstream *upstream.Client
	broker   *sse.Broker
	mirror   *mirror.Mirror
}

// NewHandler creates a new Handler.
func NewHandler(sessions *session.Manager, guides *guideservice.Service, up *upstream.Client, broker *sse.Broker, mir *mirror.Mirror) *Handler {
	return &Handler{sessions: sessions, guides: guides, upstream: up, broker: broker, mirror: mir}
}

// ListDrafts handles GET /api/travel/drafts.
//
//	@Summary		List persisted draft sessions
//	@Tags			drafts
//	@Produce		json
//	@Success		200	{object}	DraftListResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts [get]
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.sessions.List()
	if err != nil {
		slog.Error("list drafts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	writeJSON(w, http.StatusOK, DraftListResponse{Drafts: drafts, Total: len(drafts)})
}

// CreateDraft handles POST /api/travel/drafts.
//
//	@Summary		Create a draft session for a destination
//	@Tags			drafts
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDraftRequest	true	"Draft to create"
//	@Success		201		{object}	models.Draft
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts [post]
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	sess, err := h.sessions.Session(req.ID, req.Destination)
	if err != nil {
		slog.Error("create draft failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if err := h.sessions.Persist(sess); err != nil {
		slog.Error("persist draft failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// GetDraft handles GET /api/travel/drafts/{id}.
//
//	@Summary		Get one draft session
//	@Tags			drafts
//	@Produce		json
//	@Param			id	path		string	true	"Draft id"
//	@Success		200	{object}	models.Draft
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts/{id} [get]
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.draft(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// DeleteDraft handles DELETE /api/travel/drafts/{id}.
//
//	@Summary		Delete a draft session
//	@Tags			drafts
//	@Param			id	path	string	true	"Draft id"
//	@Success		204	"Draft deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts/{id} [delete]
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Delete(id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete draft failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveUnit handles DELETE /api/travel/drafts/{id}/units/{unitId}.
//
//	@Summary		Remove a top-level search unit and its follow-ups
//	@Tags			drafts
//	@Param			id		path	string	true	"Draft id"
//	@Param			unitId	path	string	true	"Unit id"
//	@Success		204		"Unit removed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts/{id}/units/{unitId} [delete]
func (h *Handler) RemoveUnit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.draft(w, r)
	if !ok {
		return
	}
	if !sess.Remove(chi.URLParam(r, "unitId")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.persistAndBroadcast(sess)
	w.WriteHeader(http.StatusNoContent)
}

// ParsedUnit handles GET /api/travel/drafts/{id}/units/{unitId}/parsed.
//
//	@Summary		Get the structured parse of one unit's response
//	@Tags			drafts
//	@Produce		json
//	@Param			id		path		string	true	"Draft id"
//	@Param			unitId	path		string	true	"Unit id"
//	@Success		200		{object}	parser.Result
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts/{id}/units/{unitId}/parsed [get]
func (h *Handler) ParsedUnit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.draft(w, r)
	if !ok {
		return
	}
	unit, found := sess.Unit(chi.URLParam(r, "unitId"))
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, parser.Parse(unit.Response, unit.IsStreaming))
}

// AddSavedItem handles POST /api/travel/drafts/{id}/saved-items.
//
//	@Summary		Save a curated excerpt to the draft
//	@Tags			drafts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Draft id"
//	@Param			body	body		SavedItemRequest	true	"Item to save"
//	@Success		201		{object}	models.SavedItem
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts/{id}/saved-items [post]
func (h *Handler) AddSavedItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req SavedItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	item := sess.AddSavedItem(req.Content, req.QueryContext)
	h.persistAndBroadcast(sess)
	writeJSON(w, http.StatusCreated, item)
}

// RemoveSavedItem handles DELETE /api/travel/drafts/{id}/saved-items/{itemId}.
//
//	@Summary		Remove one saved item
//	@Tags			drafts
//	@Param			id		path	string	true	"Draft id"
//	@Param			itemId	path	string	true	"Item id"
//	@Success		204		"Item removed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/drafts/{id}/saved-items/{itemId} [delete]
func (h *Handler) RemoveSavedItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.draft(w, r)
	if !ok {
		return
	}
	if !sess.RemoveSavedItem(chi.URLParam(r, "itemId")) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	h.persistAndBroadcast(sess)
	w.WriteHeader(http.StatusNoContent)
}

// ClearSavedItems handles DELETE /api/travel/drafts/{id}/saved-items.
//
//	@Summary		Remove all saved items from the draft
//	@Tags			drafts
//	@Param			id	path	string	true	"Draft id"
//	@Success		204	"Items cleared"
//	@Security		BearerAuth
//	@Router			/travel/drafts/{id}/saved-items [delete]
func (h *Handler) ClearSavedItems(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.draft(w, r)
	if !ok {
		return
	}
	sess.ClearSavedItems()
	h.persistAndBroadcast(sess)
	w.WriteHeader(http.StatusNoContent)
}

// SaveGuide handles POST /api/travel/guides.
//
//	@Summary		Submit a guide through the quality gate
//	@Tags			guides
//	@Accept			json
//	@Produce		json
//	@Param			body	body		GuideSubmission	true	"Guide submission"
//	@Success		201		{object}	SaveResult
//	@Success		200		{object}	SaveResult	"Duplicate or insufficient"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/guides [post]
func (h *Handler) SaveGuide(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req GuideSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	sections := make([]models.GuideSection, len(req.Sections))
	for i, s := range req.Sections {
		sections[i] = models.GuideSection{
			Heading:     s.Title,
			Query:       s.Query,
			Body:        s.Body,
			RawResponse: s.RawResponse,
		}
	}

	res, err := h.guides.SaveGuide(r.Context(), guideservice.Submission{
		Destination:     req.Destination,
		DestinationSlug: req.DestinationSlug,
		Title:           req.Title,
		Description:     req.Description,
		Sections:        sections,
		TotalSearches:   req.TotalSearches,
	})
	if err != nil {
		slog.Error("save guide failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if res.Verdict == guideservice.VerdictAccepted {
		if h.mirror != nil {
			h.mirror.GuideSaved(res.Guide)
		}
		writeJSON(w, http.StatusCreated, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListGuides handles GET /api/travel/guides.
//
//	@Summary		List guides with optional filters
//	@Tags			guides
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			state	query		string	false	"Filter by state"
//	@Param			slug	query		string	false	"Filter by destination slug"
//	@Success		200		{object}	GuideListResponse
//	@Security		BearerAuth
//	@Router			/travel/guides [get]
func (h *Handler) ListGuides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	guides, total, err := h.guides.ListGuides(r.Context(), limit, offset, q.Get("state"), q.Get("slug"))
	if err != nil {
		slog.Error("list guides failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if guides == nil {
		guides = []models.Guide{}
	}
	writeJSON(w, http.StatusOK, GuideListResponse{Guides: guides, Total: total})
}

// GetGuide handles GET /api/travel/guides/{id}.
//
//	@Summary		Get one guide with its sections
//	@Tags			guides
//	@Produce		json
//	@Param			id	path		string	true	"Guide id"
//	@Success		200	{object}	models.Guide
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/guides/{id} [get]
func (h *Handler) GetGuide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	guide, err := h.guides.GetGuide(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get guide failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, guide)
}

// SetGuideState handles POST /api/travel/guides/{id}/state.
//
//	@Summary		Move a guide through its review lifecycle
//	@Tags			guides
//	@Accept			json
//	@Param			id		path	string				true	"Guide id"
//	@Param			body	body	GuideStateRequest	true	"Target state"
//	@Success		204		"State changed"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/guides/{id}/state [post]
func (h *Handler) SetGuideState(w http.ResponseWriter, r *http.Request) {
	var req GuideStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.guides.SetGuideState(r.Context(), id, models.GuideState(req.State)); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("set guide state failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteGuide handles DELETE /api/travel/guides/{id}.
//
//	@Summary		Delete a guide
//	@Tags			guides
//	@Param			id	path	string	true	"Guide id"
//	@Success		204	"Guide deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/guides/{id} [delete]
func (h *Handler) DeleteGuide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.guides.DeleteGuide(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete guide failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across guide sections
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.guides.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Suggestions handles GET /api/travel/suggestions/{slug}.
//
//	@Summary		Get starter queries for a destination
//	@Tags			travel
//	@Produce		json
//	@Param			slug	path		string	true	"Destination slug"
//	@Success		200		{object}	Suggestions
//	@Security		BearerAuth
//	@Router			/travel/suggestions/{slug} [get]
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	res, err := h.guides.Suggestions(r.Context(), slug)
	if err != nil {
		slog.Error("suggestions failed", slog.String("slug", slug), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetPersona handles GET /api/travel/persona.
//
//	@Summary		Get the traveler persona
//	@Tags			travel
//	@Produce		json
//	@Success		200	{object}	models.Persona
//	@Security		BearerAuth
//	@Router			/travel/persona [get]
func (h *Handler) GetPersona(w http.ResponseWriter, r *http.Request) {
	p, err := h.guides.Persona(r.Context())
	if err != nil {
		slog.Error("get persona failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PutPersona handles PUT /api/travel/persona.
//
//	@Summary		Replace the traveler persona
//	@Tags			travel
//	@Accept			json
//	@Produce		json
//	@Success		200	{object}	models.Persona
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/travel/persona [put]
func (h *Handler) PutPersona(w http.ResponseWriter, r *http.Request) {
	var p models.Persona
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.guides.SetPersona(r.Context(), p); err != nil {
		slog.Error("put persona failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	saved, err := h.guides.Persona(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// draft resolves the {id} route param to a live session, writing a 404
// when it does not exist.
func (h *Handler) draft(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("load draft failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return nil, false
	}
	return sess, true
}

// persistAndBroadcast writes the draft document and notifies listeners.
func (h *Handler) persistAndBroadcast(sess *session.Session) {
	if err := h.sessions.Persist(sess); err != nil {
		slog.Error("persist draft failed", slog.String("id", sess.ID()), slog.String("error", err.Error()))
	}
	if h.broker != nil {
		h.broker.Publish(sse.Event{Type: "draft.updated", Data: map[string]string{"draftId": sess.ID()}})
	}
	if h.mirror != nil {
		h.mirror.DraftSnapshot(sess.Snapshot())
	}
}
