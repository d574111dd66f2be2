package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wirejam/wirejam/internal/service"
	"github.com/wirejam/wirejam/internal/wireframe"
)

type RoomHandler struct {
	svc *service.RoomService
}

func NewRoomHandler(s *service.RoomService) *RoomHandler { return &RoomHandler{svc: s} }

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Create(r.Context())
	if err != nil {
		log.Printf("Create room error: %v", err)
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "roomId": id})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomId, ok := roomIDParam(w, r)
	if !ok {
		return
	}
	room, users, exists, err := h.svc.Get(r.Context(), roomId)
	if err != nil {
		log.Printf("Get room error (roomId=%s): %v", roomId, err)
		h.writeServiceError(w, err)
		return
	}
	if !exists {
		h.writeServiceError(w, service.ErrRoomNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"room": room, "users": users})
}

// ExportWireframe serves the room snapshot as a downloadable wireframe file.
func (h *RoomHandler) ExportWireframe(w http.ResponseWriter, r *http.Request) {
	roomId, ok := roomIDParam(w, r)
	if !ok {
		return
	}
	f, err := h.svc.Export(r.Context(), roomId)
	if err != nil {
		log.Printf("Export wireframe error (roomId=%s): %v", roomId, err)
		h.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="wireframe-%s.json"`, roomId))
	if err := wireframe.Encode(w, f); err != nil {
		log.Printf("Export wireframe write error (roomId=%s): %v", roomId, err)
	}
}

// ImportWireframe replaces the room snapshot. The file arrives either as the multipart field
// "file" or as a raw JSON body.
func (h *RoomHandler) ImportWireframe(w http.ResponseWriter, r *http.Request) {
	roomId, ok := roomIDParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var body io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			respondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		body = file
	}

	n, err := h.svc.Import(r.Context(), roomId, body)
	if err != nil {
		log.Printf("Import wireframe error (roomId=%s): %v", roomId, err)
		h.writeServiceError(w, err)
		return
	}
	log.Printf("Imported wireframe: roomId=%s, shapes=%d", roomId, n)
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "shapeCount": n})
}

func roomIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	roomId := normalizeID(chi.URLParam(r, "roomId"))
	if err := validateRoomId(roomId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return roomId, true
}

func (h *RoomHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, service.ErrRoomNotFound.Error())
	case errors.Is(err, service.ErrInvalidWireframe):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
