package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/catalog"
	"github.com/hongminglow/cardsavvy-be/internal/http/respond"
	"github.com/hongminglow/cardsavvy-be/internal/logger"
	"github.com/hongminglow/cardsavvy-be/internal/models/dto"
)

const defaultChunkDelay = 20 * time.Millisecond

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// AdvisorHandler serves purchase analysis and the streaming chat assistant.
type AdvisorHandler struct {
	resolver   *catalog.Resolver
	log        *zap.Logger
	chunkDelay time.Duration
}

// NewAdvisorHandler constructs the handler. chunkDelay paces the streamed
// chat words; a negative value selects the default.
func NewAdvisorHandler(resolver *catalog.Resolver, log *zap.Logger, chunkDelay time.Duration) *AdvisorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if chunkDelay < 0 {
		chunkDelay = defaultChunkDelay
	}
	return &AdvisorHandler{resolver: resolver, log: log, chunkDelay: chunkDelay}
}

// Register attaches analyze and chat routes to the mux.
func (h *AdvisorHandler) Register(mux *http.ServeMux, requireUser Middleware) {
	mux.HandleFunc("/api/analyze", requireUser(h.handleAnalyze))
	mux.HandleFunc("/api/chat", requireUser(h.handleChat))
}

func (h *AdvisorHandler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req dto.AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.resolver.Recommend(r.Context(), userID(r), req.Merchant, req.Amount)
	if err != nil {
		writeError(w, r, h.log, err, "analyze purchase")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.AnalyzeResponse{
		Category:   rec.Category,
		Confidence: rec.Confidence,
		RecommendedCard: dto.RecommendedCard{
			ID:   rec.Card.ID,
			Name: rec.Card.CardName,
			Bank: rec.Card.Issuer,
		},
		EstimatedReward: dto.EstimatedReward{
			Value:      fmt.Sprintf("%.2f", rec.Reward),
			Unit:       "INR",
			Percentage: rec.Percentage(),
		},
		Explanation: rec.Explanation(),
	})
}

// handleChat streams the assistant's answer as server-sent events, one word
// per event, terminated by a [DONE] event.
func (h *AdvisorHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req dto.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	answer, err := h.resolver.Chat(r.Context(), userID(r), req.Message)
	if err != nil {
		writeError(w, r, h.log, err, "answer chat")
		return
	}

	stream := respond.NewEventStream(w)
	ctx := r.Context()
	// Newlines would terminate an event early.
	answer = newlineReplacer.Replace(answer)
	for _, chunk := range strings.Split(answer, " ") {
		if err := stream.Send(chunk + " "); err != nil {
			logger.WithContext(ctx, h.log).Debug("chat stream aborted", zap.Error(err))
			return
		}
		if h.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.chunkDelay):
			}
		}
	}
	_ = stream.Send("[DONE]")
}
