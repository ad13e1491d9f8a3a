package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/metrics"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
)

type queryRequest struct {
	Query string `json:"query"`
}

type nlQueryRequest struct {
	Question string `json:"question"`
}

// handleQuery executes a caller-supplied SPARQL query. The query goes
// through the same rewrite and fallback pipeline as generated ones, so
// hand-written queries benefit from namespace repair and subclass paths.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeBadRequestResponse(w, "query is required")
		return
	}

	start := time.Now()
	exec := s.rewriter.Rewrite(rewrite.CandidateQuery{
		Text:       req.Query,
		Provenance: rewrite.ProvenanceUser,
	})
	outcome := s.controller.Run(exec)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues(string(outcome.Status)).Inc()

	if outcome.Err != nil {
		s.logger.Warn("query execution failed", zap.Error(outcome.Err))
		writeBadRequestResponse(w, outcome.Err.Error())
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":       true,
		"results":       outcome.Results,
		"count":         outcome.Count(),
		"executedQuery": outcome.ExecutedQuery,
		"status":        outcome.Status,
		"suggestions":   outcome.Suggestions,
	})
}

// handleNaturalQuery answers a natural-language question through the
// generative bridge.
func (s *Server) handleNaturalQuery(w http.ResponseWriter, r *http.Request) {
	var req nlQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeBadRequestResponse(w, "question is required")
		return
	}

	start := time.Now()
	answer, err := s.bridge.Ask(r.Context(), req.Question)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("natural-language query failed", zap.Error(err))
		writeInternalServerErrorResponse(w, err.Error())
		return
	}
	metrics.QueriesTotal.WithLabelValues(string(answer.Status)).Inc()

	writeJSONResponse(w, http.StatusOK, answer)
}

func (s *Server) handleAISuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.bridge.Suggestions(r.Context())
	if err != nil {
		s.logger.Warn("suggestion generation failed", zap.Error(err))
		writeErrorResponse(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":     true,
		"suggestions": suggestions,
	})
}

// handleAIInsights summarizes the graph statistics through the model.
// The insight call itself never fails the request.
func (s *Server) handleAIInsights(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		writeInternalServerErrorResponse(w, err.Error())
		return
	}
	summary := fmt.Sprintf("Utilisateurs: %d, Transports: %d, Stations: %d, Événements: %d",
		stats["utilisateurs"], stats["transports"], stats["stations"], stats["evenements"])

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":  true,
		"insights": s.bridge.Insights(r.Context(), summary),
	})
}

func (s *Server) handleRelatedQueries(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeBadRequestResponse(w, "query is required")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":        true,
		"relatedQueries": s.bridge.RelatedQueries(r.Context(), req.Query),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		s.logger.Error("failed to compute stats", zap.Error(err))
		writeInternalServerErrorResponse(w, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeBadRequestResponse(w, "query parameter q is required")
		return
	}
	records, err := s.service.Search(term, r.URL.Query().Get("category"))
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		writeInternalServerErrorResponse(w, err.Error())
		return
	}
	writeListResponse(w, "results", records, len(records))
}
