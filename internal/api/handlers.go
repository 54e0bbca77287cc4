package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sxyu/cantus-chem/core/errors"
	"github.com/sxyu/cantus-chem/core/formula"
	"github.com/sxyu/cantus-chem/core/resolve"
	"github.com/sxyu/cantus-chem/internal/logging"
)

const apiVersion = "0.3.0"

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ResolveRequest is the request body for formula resolution.
type ResolveRequest struct {
	Formula   string         `json:"formula"`
	Ions      bool           `json:"ions,omitempty"`
	Decompose bool           `json:"decompose,omitempty"`
	Hints     map[string]int `json:"hints,omitempty"`
}

// StrengthInfo pairs the acid and base classification of one species.
type StrengthInfo struct {
	Species  string               `json:"species"`
	Acidity  resolve.StrengthInfo `json:"acidity"`
	Basicity resolve.StrengthInfo `json:"basicity"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Tables      string `json:"tables"`
	Fingerprint string `json:"fingerprint"`
	Elements    int    `json:"elements"`
	Ions        int    `json:"ions"`
	CacheHits   int64  `json:"cache_hits"`
	CacheMisses int64  `json:"cache_misses"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Cantus Chem API",
		"version": apiVersion,
		"tables":  s.registry.Name(),
		"endpoints": []string{
			"GET /healthz",
			"POST /v1/resolve",
			"GET /v1/elements/:symbol",
			"GET /v1/ions/:key",
			"GET /v1/strength/:species",
			"WS /v1/live",
		},
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	stats := s.resolver.Stats()

	respond(w, http.StatusOK, HealthInfo{
		Status:      "healthy",
		Version:     apiVersion,
		Uptime:      time.Since(s.startTime).String(),
		Tables:      s.registry.Name(),
		Fingerprint: s.registry.Fingerprint(),
		Elements:    s.registry.ElementCount(),
		Ions:        s.registry.IonCount(),
		CacheHits:   stats.Hits,
		CacheMisses: stats.Misses,
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}

	opts := resolve.Options{
		Ions:          req.Ions,
		DecomposeIons: req.Decompose,
		ChargeHints:   req.Hints,
	}

	result, _, err := s.resolver.Resolve(req.Formula, opts)
	if err != nil {
		var perr *formula.ParseError
		if errors.As(err, &perr) {
			respondError(w, http.StatusBadRequest, parseErrorCode(perr), perr.Error())
			return
		}
		logging.ErrorContext(r.Context(), "resolve failed", "formula", req.Formula, "error", err)
		respondError(w, http.StatusInternalServerError, "RESOLVE_FAILED", err.Error())
		return
	}

	logging.Resolve(req.Formula, len(result.Unresolved), len(result.Warnings))
	respond(w, http.StatusOK, result)
}

func (s *Server) handleElement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/v1/elements/")
	if symbol == "" || strings.Contains(symbol, "/") {
		respondError(w, http.StatusBadRequest, "INVALID_SYMBOL", "Element symbol required")
		return
	}

	el, ok := s.registry.Element(symbol)
	if !ok {
		// Fall back to the English name so /v1/elements/oxygen works.
		el, ok = s.registry.ElementByName(symbol)
	}
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Element not found: "+symbol)
		return
	}

	respond(w, http.StatusOK, el)
}

func (s *Server) handleIon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/ions/")
	if key == "" || strings.Contains(key, "/") {
		respondError(w, http.StatusBadRequest, "INVALID_KEY", "Ion key required")
		return
	}

	ion, ok := s.registry.Ion(key)
	if !ok {
		// Synonyms work too: /v1/ions/sulfate resolves to SO4.
		ion, ok = s.registry.IonByName(key)
	}
	if !ok {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Ion not found: "+key)
		return
	}

	respond(w, http.StatusOK, ion)
}

func (s *Server) handleStrength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	species := strings.TrimPrefix(r.URL.Path, "/v1/strength/")
	if species == "" || strings.Contains(species, "/") {
		respondError(w, http.StatusBadRequest, "INVALID_SPECIES", "Species formula required")
		return
	}

	acidity, basicity := s.resolver.Resolver().Strength(species)
	if acidity.Strength == resolve.StrengthUnknown && basicity.Strength == resolve.StrengthUnknown {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No dissociation data for species: "+species)
		return
	}

	respond(w, http.StatusOK, StrengthInfo{
		Species:  species,
		Acidity:  acidity,
		Basicity: basicity,
	})
}

// parseErrorCode maps a parse error kind to an API error code.
func parseErrorCode(perr *formula.ParseError) string {
	return strings.ToUpper(string(perr.Kind))
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
