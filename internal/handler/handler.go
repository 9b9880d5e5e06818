package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/errs"
	"github.com/bankcards/card-service/internal/middleware"
	"github.com/bankcards/card-service/internal/models"
	"github.com/bankcards/card-service/internal/service"
)

// Handler exposes the service layer over HTTP
type Handler struct {
	cards *service.CardService
	users *service.UserService
	auth  *service.AuthService
	log   *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(cards *service.CardService, users *service.UserService, auth *service.AuthService, log *logrus.Logger) *Handler {
	return &Handler{cards: cards, users: users, auth: auth, log: log}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return 0, fmt.Errorf("missing path parameter %q", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid path parameter %q", name)
	}
	return id, nil
}

// actingOwner resolves the owner id a user-scoped route operates on. The
// path id must match the authenticated subject unless the caller is an
// admin acting on the user's behalf.
func (h *Handler) actingOwner(r *http.Request) (int64, error) {
	pathUserID, err := pathID(r, "userId")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errs.ErrForbidden, err)
	}
	actorID, ok := middleware.UserID(r.Context())
	if !ok {
		return 0, errs.ErrForbidden
	}
	role, _ := middleware.Role(r.Context())
	if actorID != pathUserID && role != models.RoleAdmin {
		return 0, fmt.Errorf("%w: cannot act on another user's cards", errs.ErrForbidden)
	}
	return pathUserID, nil
}
