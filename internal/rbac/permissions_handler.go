package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-commerce/meridian-commerce/internal/platform/httpx"
	"github.com/meridian-commerce/meridian-commerce/internal/shared"
)

// PermissionsHandler exposes permission introspection and override writes.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/mine", h.listMine)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ActionRead, "User"))
		r.Get("/resources", h.listResources)
		r.Get("/identities/{identityID}", h.listForIdentity)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(ActionUpdate, "User"))
		r.Put("/identities/{identityID}", h.setOverrides)
	})
}

func (h *PermissionsHandler) listMine(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrSessionInvalid)
		return
	}
	set, err := h.service.EffectivePermissions(r.Context(), principal.IdentityID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": set})
}

func (h *PermissionsHandler) listResources(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"resources": Resources})
}

func (h *PermissionsHandler) listForIdentity(w http.ResponseWriter, r *http.Request) {
	identityID, err := strconv.ParseInt(chi.URLParam(r, "identityID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid identity id")
		return
	}
	set, err := h.service.EffectivePermissions(r.Context(), identityID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": set})
}

type overridesRequest struct {
	Entries []PermissionEntry `json:"entries"`
}

func (h *PermissionsHandler) setOverrides(w http.ResponseWriter, r *http.Request) {
	identityID, err := strconv.ParseInt(chi.URLParam(r, "identityID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid identity id")
		return
	}
	var req overridesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed json body")
		return
	}
	if err := h.service.SetIdentityOverrides(r.Context(), identityID, req.Entries); err != nil {
		h.logger.Warn("set overrides", slog.Int64("identity_id", identityID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
