package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/catalog"
	"github.com/hongminglow/cardsavvy-be/internal/enrichment"
	"github.com/hongminglow/cardsavvy-be/internal/http/respond"
	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/models/dto"
)

// CardsHandler serves catalog, wallet and lookup/confirm endpoints.
type CardsHandler struct {
	resolver *catalog.Resolver
	log      *zap.Logger
}

// NewCardsHandler constructs the handler.
func NewCardsHandler(resolver *catalog.Resolver, log *zap.Logger) *CardsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CardsHandler{resolver: resolver, log: log}
}

// Register attaches card routes to the mux.
func (h *CardsHandler) Register(mux *http.ServeMux, requireUser Middleware) {
	mux.HandleFunc("/api/cards/public", h.handlePublic)
	mux.HandleFunc("/api/cards/catalog", requireUser(h.handleCatalog))
	mux.HandleFunc("/api/cards/wallet", requireUser(h.handleWallet))
	mux.HandleFunc("/api/cards/lookup", requireUser(h.handleLookup))
	mux.HandleFunc("/api/cards/confirm", requireUser(h.handleConfirm))
}

func (h *CardsHandler) handlePublic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	h.writeCatalog(w, r, models.StatusVerified)
}

func (h *CardsHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	status := models.StatusVerified
	if r.URL.Query().Get("verification") == string(models.StatusPending) {
		status = models.StatusPending
	}
	h.writeCatalog(w, r, status)
}

func (h *CardsHandler) writeCatalog(w http.ResponseWriter, r *http.Request, status models.VerificationStatus) {
	cards, err := h.resolver.ListCatalog(r.Context(), status)
	if err != nil {
		writeError(w, r, h.log, err, "list catalog")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.CardsResponse{Cards: cards})
}

func (h *CardsHandler) handleWallet(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cards, err := h.resolver.ListWallet(r.Context(), userID(r))
		if err != nil {
			writeError(w, r, h.log, err, "list wallet")
			return
		}
		respond.JSON(w, http.StatusOK, "ok", dto.CardsResponse{Cards: cards})
	case http.MethodPost:
		var req dto.WalletRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		card, err := h.resolver.AddToWallet(r.Context(), userID(r), req.CardCatalogID, req.Nickname, req.LastFour)
		if err != nil {
			writeError(w, r, h.log, err, "add wallet card")
			return
		}
		respond.JSON(w, http.StatusOK, "card added to wallet", dto.ConfirmResponse{Success: true, Card: card})
	default:
		methodNotAllowed(w)
	}
}

func (h *CardsHandler) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req dto.LookupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.resolver.Lookup(r.Context(), userID(r), enrichment.Query{
		CardName: req.CardName,
		Issuer:   req.Issuer,
		Network:  req.Network,
	})
	if err != nil {
		writeError(w, r, h.log, err, "look up card")
		return
	}

	if res.Status == catalog.StatusFoundVerified {
		respond.JSON(w, http.StatusOK, "ok", dto.FoundVerifiedResponse{
			Status: string(res.Status),
			Card:   res.Card,
		})
		return
	}
	extractedFrom := []string{}
	if res.Candidate.Evidence != nil && res.Candidate.Evidence.URLs != nil {
		extractedFrom = res.Candidate.Evidence.URLs
	}
	respond.JSON(w, http.StatusOK, "ok", dto.NeedsConfirmationResponse{
		Status:        string(res.Status),
		Candidate:     res.Candidate,
		Confidence:    res.Confidence,
		ExtractedFrom: extractedFrom,
	})
}

func (h *CardsHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req dto.ConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	card, err := h.resolver.Confirm(r.Context(), userID(r), catalog.ConfirmInput{
		CardName:    req.CardName,
		Issuer:      req.Issuer,
		Network:     req.Network,
		RewardRules: req.RewardRules,
		Evidence:    req.Evidence,
		Nickname:    req.Nickname,
		LastFour:    req.LastFour,
	})
	if err != nil {
		writeError(w, r, h.log, err, "confirm card")
		return
	}
	respond.JSON(w, http.StatusOK, "card confirmed", dto.ConfirmResponse{Success: true, Card: card})
}
