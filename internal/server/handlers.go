package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adhney/voice-interviewer/internal/apperr"
	"github.com/adhney/voice-interviewer/internal/interview"
)

const maxSessionBody = 1 << 20

type createSessionRequest struct {
	Name       string `json:"name"`
	Identity   string `json:"identity,omitempty"`
	ResumeText string `json:"resumeText,omitempty"`
}

type createSessionResponse struct {
	Room     string `json:"room"`
	URL      string `json:"url"`
	Token    string `json:"token"`
	Identity string `json:"identity"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

// handleCreateSession creates a room whose metadata carries the resume,
// dispatches the interviewer into it and returns a candidate token.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSessionBody))
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, apperr.Validation("invalid request body: "+err.Error(), ""))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.respondError(w, apperr.Validation("name is required", "name"))
		return
	}
	identity := strings.TrimSpace(req.Identity)
	if identity == "" {
		identity = "candidate-" + uuid.NewString()[:8]
	}
	roomName := "interview-" + uuid.NewString()

	metadata, err := interview.RoomMetadata(req.ResumeText)
	if err != nil {
		s.respondError(w, apperr.Validation("resume text cannot be encoded", "resumeText"))
		return
	}

	log := s.log.With(zap.String("room", roomName), zap.String("identity", identity))

	if err := s.rooms.CreateRoom(r.Context(), roomName, metadata); err != nil {
		log.Error("create room failed", zap.Error(err))
		s.respondError(w, apperr.Service("livekit", err))
		return
	}

	token, err := s.rooms.GenerateToken(roomName, identity, req.Name, false)
	if err != nil {
		log.Error("token generation failed", zap.Error(err))
		s.respondError(w, apperr.Service("livekit", err))
		return
	}

	if err := s.agents.Dispatch(r.Context(), roomName); err != nil {
		log.Error("agent dispatch failed", zap.Error(err))
		s.respondError(w, apperr.Agent("dispatch", err))
		return
	}

	log.Info("session created", zap.Bool("resume", req.ResumeText != ""))
	s.respondJSON(w, http.StatusCreated, createSessionResponse{
		Room:     roomName,
		URL:      s.rooms.URL(),
		Token:    token,
		Identity: identity,
	})
}

// handleEndSession deletes the room; the agent in it sees the disconnect and
// stops on its own.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	roomName := chi.URLParam(r, "room")
	if !strings.HasPrefix(roomName, "interview-") {
		s.respondError(w, apperr.Validation("unknown room "+strconv.Quote(roomName), "room"))
		return
	}
	if err := s.rooms.DeleteRoom(r.Context(), roomName); err != nil {
		s.log.Error("delete room failed", zap.String("room", roomName), zap.Error(err))
		s.respondError(w, apperr.Service("livekit", err))
		return
	}
	s.log.Info("session ended", zap.String("room", roomName))
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.respondJSON(w, apperr.HTTPStatus(err), map[string]string{
		"error": err.Error(),
		"code":  apperr.CodeOf(err),
	})
}
