package server

import (
	"encoding/json"
	"net/http"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/state"
)

type errorBody struct {
	Error string `json:"error"`
}

// StatusBody is the /api/status payload.
type StatusBody struct {
	Status    string              `json:"status"`
	Version   string              `json:"version,omitempty"`
	Providers int                 `json:"providers"`
	Tools     int                 `json:"tools"`
	Clients   int                 `json:"clients"`
	Memory    *state.MemoryStatus `json:"memory,omitempty"`
}

// ProviderBody is one entry of the /api/tools payload.
type ProviderBody struct {
	Name  string                `json:"name"`
	Tools []capability.ToolSpec `json:"tools"`
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	registry := s.registry()
	body := StatusBody{
		Status:    "ok",
		Version:   s.version,
		Providers: registry.Len(),
		Tools:     len(registry.ToolNames()),
		Clients:   s.ClientCount(),
	}
	if s.memory != nil {
		if ms, err := s.memory.Status(); err == nil {
			body.Memory = &ms
		} else {
			s.logger.Log("[server] memory status: %v", err)
		}
	}
	jsonResponse(w, http.StatusOK, body)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	providers := s.registry().Providers()
	body := make([]ProviderBody, 0, len(providers))
	for _, p := range providers {
		body = append(body, ProviderBody{Name: p.Name(), Tools: p.Tools()})
	}
	jsonResponse(w, http.StatusOK, body)
}

func (s *Server) handleMemoryStatus(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		jsonError(w, http.StatusNotFound, "memory is not enabled")
		return
	}
	ms, err := s.memory.Status()
	if err != nil {
		s.logger.Log("[server] memory status: %v", err)
		jsonError(w, http.StatusInternalServerError, "failed to read memory status")
		return
	}
	jsonResponse(w, http.StatusOK, ms)
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		jsonError(w, http.StatusNotFound, "memory is not enabled")
		return
	}
	if err := s.memory.Clear(); err != nil {
		s.logger.Log("[server] memory clear: %v", err)
		jsonError(w, http.StatusInternalServerError, "failed to clear memory")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"cleared": true})
}
