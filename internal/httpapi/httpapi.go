// Package httpapi is the one HTTP surface spec §6 actually specifies:
// POST /chat/ask, plus the websocket progress handle a NOVEL_CLAIM
// response hands back (spec §4.K / §6 "Streaming (progress)"). Everything
// else named in §6 (admin/read/audits/sources CRUD) is out of core scope
// per §1 ("treated as collaborators") and is not implemented here.
//
// Grounded on C360Studio-semstreams' gateway/http/http.go for the shape of
// a small net/http mux with JSON request/response helpers; there is no
// teacher equivalent (the teacher is a one-shot CLI scanner with no HTTP
// surface at all).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/veritas-audit/veritas/internal/bus"
	"github.com/veritas-audit/veritas/internal/contextanalyzer"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/router"
	"github.com/veritas-audit/veritas/internal/streamws"
)

// Server wires the Context Analyzer and Router into the /chat/ask
// contract of spec §6, and the Progress Bus into the websocket handle a
// NOVEL_CLAIM response names.
type Server struct {
	ContextAnalyzer *contextanalyzer.Analyzer
	Router          *router.Router
	Bus             *bus.Bus
}

// New builds a Server.
func New(analyzer *contextanalyzer.Analyzer, r *router.Router, b *bus.Bus) *Server {
	return &Server{ContextAnalyzer: analyzer, Router: r, Bus: b}
}

// Mux returns the http.Handler serving every route this server owns.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/ask", s.handleAsk)
	mux.HandleFunc("/progress/", s.handleProgress)
	return mux
}

// askRequest is the wire shape of spec §6's POST /chat/ask body.
type askRequest struct {
	Question            string             `json:"question"`
	ConversationHistory []model.ChatMessage `json:"conversation_history"`
}

// askResponse is the envelope spec §6 describes: mode, a mode-specific
// response payload, the routing decision id, and (NOVEL_CLAIM only) the
// websocket session id to subscribe to for progress.
type askResponse struct {
	Mode               model.RoutingMode `json:"mode"`
	Response           any               `json:"response"`
	RoutingDecisionID  string            `json:"routing_decision_id"`
	WebsocketSessionID string            `json:"websocket_session_id,omitempty"`
}

type exactMatchResponse struct {
	Type      string                `json:"type"`
	ClaimCard *model.ClaimCardWire  `json:"claim_card"`
}

type contextualResponse struct {
	Type                 string                  `json:"type"`
	SynthesizedResponse  string                  `json:"synthesized_response"`
	SourceCards          []*model.ClaimCardWire  `json:"source_cards"`
}

type generatingResponse struct {
	Type                   string `json:"type"`
	PipelineStatus         string `json:"pipeline_status"`
	WebsocketSessionID     string `json:"websocket_session_id"`
	ContextualizedQuestion string `json:"contextualized_question"`
}

// handleAsk implements spec §6's POST /chat/ask: reformulate with the
// Context Analyzer, hand the reformulated question to the Router, and
// shape the response by the mode the Router picked.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "only POST is supported")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	ctx := r.Context()
	sessionID := uuid.NewString()

	reformulated, err := s.ContextAnalyzer.Reformulate(ctx, sessionID, req.Question, req.ConversationHistory)
	if err != nil {
		reformulated = req.Question
	}

	history := append(append([]model.ChatMessage{}, req.ConversationHistory...), model.ChatMessage{Role: "user", Content: req.Question})
	decision, err := s.Router.Decide(ctx, sessionID, reformulated, history)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "routing failed: "+err.Error())
		return
	}

	resp := askResponse{
		Mode:              decision.ModeSelected,
		RoutingDecisionID: decision.ID,
	}

	switch decision.ModeSelected {
	case model.ModeExactMatch:
		card, err := s.resolveCard(ctx, decision)
		if err != nil {
			// spec §7: "Mode 1 failure to resolve the cited card -> fall
			// forward to Mode 3 with router_fallback event".
			s.fallForwardToNovel(w, r, sessionID, reformulated, history, &resp)
			return
		}
		resp.Response = exactMatchResponse{Type: "exact_match", ClaimCard: model.NewClaimCardWire(card)}

	case model.ModeContextual:
		cards := make([]*model.ClaimCardWire, 0, len(decision.ClaimCardsReferenced))
		for _, id := range decision.ClaimCardsReferenced {
			card, err := s.Router.Service.GetClaimDetails(ctx, id)
			if err != nil {
				continue
			}
			cards = append(cards, model.NewClaimCardWire(card))
		}
		resp.Response = contextualResponse{
			Type:                 "contextual",
			SynthesizedResponse: decision.Answer,
			SourceCards:          cards,
		}

	default: // NOVEL_CLAIM
		resp.WebsocketSessionID = sessionID
		resp.Response = generatingResponse{
			Type:                   "generating",
			PipelineStatus:         "started",
			WebsocketSessionID:     sessionID,
			ContextualizedQuestion: reformulated,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// resolveCard fetches the exact-match card, returning an error the caller
// treats as a Mode-1-resolution failure per spec §7.
func (s *Server) resolveCard(ctx context.Context, decision *model.RouterDecision) (*model.ClaimCard, error) {
	if len(decision.ClaimCardsReferenced) == 0 {
		return nil, errNoReferencedCard
	}
	return s.Router.Service.GetClaimDetails(ctx, decision.ClaimCardsReferenced[0])
}

var errNoReferencedCard = errors.New("httpapi: exact match decision referenced no claim card")

// fallForwardToNovel re-drives the request as a NOVEL_CLAIM after a Mode-1
// resolution failure (spec §7's fall-forward rule); the Router itself
// already emits router_fallback for LLM-layer failures, this is the
// handler-layer analogue for a store-layer lookup miss.
func (s *Server) fallForwardToNovel(w http.ResponseWriter, r *http.Request, sessionID, reformulated string, history []model.ChatMessage, resp *askResponse) {
	if s.Bus != nil {
		s.Bus.Publish(sessionID, bus.EventRouterFallback, map[string]any{"reason": "exact match card could not be resolved"})
	}
	newSessionID, err := s.Router.Service.GenerateNewClaim(r.Context(), reformulated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fall-forward to novel claim failed: "+err.Error())
		return
	}
	resp.Mode = model.ModeNovelClaim
	resp.WebsocketSessionID = newSessionID
	resp.Response = generatingResponse{
		Type:                   "generating",
		PipelineStatus:         "started",
		WebsocketSessionID:     newSessionID,
		ContextualizedQuestion: reformulated,
	}
	writeJSON(w, http.StatusOK, *resp)
}

// handleProgress upgrades a request at /progress/{sessionID} to the
// websocket duplex channel of spec §4.K/§6.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Path[len("/progress/"):]
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}
	if err := streamws.Serve(s.Bus, sessionID, w, r); err != nil {
		// The client disconnecting mid-stream is routine, not an error
		// worth surfacing; the upgrade itself already wrote the response.
		return
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
