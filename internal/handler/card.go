package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankcards/card-service/internal/models"
)

type createCardRequest struct {
	OwnerID        int64           `json:"owner_id"`
	Number         string          `json:"number"`
	ExpirationDate string          `json:"expiration_date"` // YYYY-MM-DD
	Balance        decimal.Decimal `json:"balance"`
}

type transferRequest struct {
	FromCardID int64           `json:"from_card_id"`
	ToCardID   int64           `json:"to_card_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// ListAllCards returns every card in the system (admin)
func (h *Handler) ListAllCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.cards.GetAllCards(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// CreateCard provisions a new card (admin)
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	expiration, err := time.Parse("2006-01-02", req.ExpirationDate)
	if err != nil {
		http.Error(w, "expiration_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	card, err := h.cards.CreateCard(r.Context(), req.OwnerID, req.Number, expiration, req.Balance)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// BlockCard blocks a card by id (admin)
func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	card, err := h.cards.BlockCard(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// ActivateCard re-activates a blocked card (admin)
func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	card, err := h.cards.ActivateCard(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// DeleteCard removes a card (admin)
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.cards.DeleteCard(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestBlock blocks a card at its owner's request
func (h *Handler) RequestBlock(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.actingOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cardID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	card, err := h.cards.RequestBlock(r.Context(), ownerID, cardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// Transfer moves money between two cards of the acting user
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.actingOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.cards.Transfer(r.Context(), ownerID, req.FromCardID, req.ToCardID, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserCards returns one page of the acting user's cards
func (h *Handler) ListUserCards(w http.ResponseWriter, r *http.Request) {
	ownerID, err := h.actingOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	page := parseIntDefault(query.Get("page"), 0)
	size := parseIntDefault(query.Get("size"), 20)

	var status *models.CardStatus
	if raw := query.Get("status"); raw != "" {
		parsed, ok := models.ParseCardStatus(raw)
		if !ok {
			http.Error(w, "status must be ACTIVE or BLOCKED", http.StatusBadRequest)
			return
		}
		status = &parsed
	}

	result, err := h.cards.GetUserCards(r.Context(), ownerID, status, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
