package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/codebattle/go/internal/game/engine"
	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// StateProvider exposes read-only room state for HTTP resync.
type StateProvider interface {
	Snapshot(ctx context.Context, roomID string) (events.RoomView, error)
	ListRooms(ctx context.Context) []events.RoomSummary
}

// StateHandler handles HTTP requests for room state
type StateHandler struct {
	stateProvider StateProvider
	publicURL     string
}

// NewStateHandler creates a new state handler. publicURL is the base of the
// join link encoded in room QR codes; when empty the request host is used.
func NewStateHandler(provider StateProvider, publicURL string) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
		publicURL:     strings.TrimRight(publicURL, "/"),
	}
}

// HandleListRooms handles GET /api/rooms
func (h *StateHandler) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.stateProvider.ListRooms(r.Context())
	writeJSON(w, http.StatusOK, rooms)
}

// HandleGetRoomState handles GET /api/rooms/{code}/state
func (h *StateHandler) HandleGetRoomState(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	state, err := h.stateProvider.Snapshot(r.Context(), code)
	if err != nil {
		h.writeLookupError(w, code, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleRoomQR handles GET /api/rooms/{code}/qr and returns a PNG join code.
func (h *StateHandler) HandleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	state, err := h.stateProvider.Snapshot(r.Context(), code)
	if err != nil {
		h.writeLookupError(w, code, err)
		return
	}

	png, err := qrcode.Encode(h.joinURL(r, state.ID), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Str("room_id", state.ID).Msg("failed to encode room QR code")
		http.Error(w, "Failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(png); err != nil {
		log.Debug().Err(err).Msg("failed to write QR code response")
	}
}

func (h *StateHandler) joinURL(r *http.Request, roomID string) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return base + "/?room=" + url.QueryEscape(roomID)
}

func (h *StateHandler) writeLookupError(w http.ResponseWriter, code string, err error) {
	if errors.Is(err, engine.ErrRoomNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	log.Error().Err(err).Str("room_id", code).Msg("failed to get room state")
	http.Error(w, "Failed to get room state", http.StatusInternalServerError)
}

// RegisterRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", h.HandleListRooms)
		r.Get("/{code}/state", h.HandleGetRoomState)
		r.Get("/{code}/qr", h.HandleRoomQR)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
