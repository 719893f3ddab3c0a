package sections

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/canopyhq/canopy/pkg/httputil"
	"github.com/canopyhq/canopy/pkg/observability"
	"github.com/canopyhq/canopy/pkg/permcache"
)

// Handler exposes section and membership operations over HTTP. Requests
// arrive already authenticated; identity comes from the request headers
// set by the identity middleware.
type Handler struct {
	service *PostgresService
	cache   *permcache.Cache
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewHandler creates a section HTTP handler. cache and metrics may be nil.
func NewHandler(service *PostgresService, cache *permcache.Cache, logger *observability.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		service: service,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

// RegisterRoutes registers section routes on the router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sections", h.handleListSections).Methods(http.MethodGet)
	router.HandleFunc("/sections", h.handleCreateSection).Methods(http.MethodPost)
	router.HandleFunc("/sections/reorder", h.handleReorder).Methods(http.MethodPut)
	router.HandleFunc("/sections/{id}", h.handleGetSection).Methods(http.MethodGet)
	router.HandleFunc("/sections/{id}", h.handleUpdateSection).Methods(http.MethodPatch)
	router.HandleFunc("/sections/{id}", h.handleRemoveSection).Methods(http.MethodDelete)
	router.HandleFunc("/sections/{id}/access", h.handleResolveAccess).Methods(http.MethodGet)
	router.HandleFunc("/sections/{id}/members", h.handleListMembers).Methods(http.MethodGet)
	router.HandleFunc("/sections/{id}/members/{userID}", h.handleGrantMember).Methods(http.MethodPut)
	router.HandleFunc("/sections/{id}/members/{userID}", h.handleUpdateMemberRole).Methods(http.MethodPatch)
	router.HandleFunc("/sections/{id}/members/{userID}", h.handleRemoveMember).Methods(http.MethodDelete)
}

func (h *Handler) handleListSections(w http.ResponseWriter, r *http.Request) {
	userID := httputil.UserID(r)
	globalRole := GlobalRole(httputil.GlobalRole(r))

	result, err := h.service.ListAccessibleSections(r.Context(), userID, globalRole)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list accessible sections")
		httputil.WriteInternalError(w, err)
		return
	}
	if result == nil {
		result = []*Section{}
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handler) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var req CreateSectionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if req.Name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}

	section, err := h.service.CreateSection(r.Context(), &req, httputil.UserID(r))
	if err != nil {
		h.recordMutation("create_section", "error")
		h.logger.WithError(err).Error("Failed to create section")
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordMutation("create_section", "ok")
	httputil.WriteCreated(w, section)
}

func (h *Handler) handleGetSection(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	section, err := h.service.GetSection(r.Context(), sectionID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if !h.requireAccess(w, r, sectionID, RoleViewer) {
		return
	}
	httputil.WriteSuccess(w, section)
}

func (h *Handler) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.service.GetSection(r.Context(), sectionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !h.requireAccess(w, r, sectionID, RoleAdmin) {
		return
	}

	var req UpdateSectionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	section, err := h.service.UpdateSection(r.Context(), sectionID, &req)
	if err != nil {
		h.recordMutation("update_section", "error")
		h.writeServiceError(w, err)
		return
	}

	h.recordMutation("update_section", "ok")
	httputil.WriteSuccess(w, section)
}

func (h *Handler) handleRemoveSection(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.service.GetSection(r.Context(), sectionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !h.requireAccess(w, r, sectionID, RoleAdmin) {
		return
	}

	if err := h.service.RemoveSection(r.Context(), sectionID); err != nil {
		h.recordMutation("remove_section", "error")
		h.writeServiceError(w, err)
		return
	}

	h.recordMutation("remove_section", "ok")
	httputil.WriteNoContent(w)
}

type reorderRequest struct {
	SectionIDs []int64 `json:"section_ids"`
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	if !GlobalRole(httputil.GlobalRole(r)).IsAdmin() {
		httputil.WriteForbiddenError(w, "insufficient permission")
		return
	}

	var req reorderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if len(req.SectionIDs) == 0 {
		httputil.WriteValidationError(w, "section_ids is required")
		return
	}

	if err := h.service.Reorder(r.Context(), req.SectionIDs); err != nil {
		h.recordMutation("reorder", "error")
		h.logger.WithError(err).Error("Failed to reorder sections")
		httputil.WriteInternalError(w, err)
		return
	}

	h.recordMutation("reorder", "ok")
	httputil.WriteNoContent(w)
}

func (h *Handler) handleResolveAccess(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	userID := httputil.UserID(r)
	globalRole := GlobalRole(httputil.GlobalRole(r))

	var required *SectionRole
	if raw := r.URL.Query().Get("required"); raw != "" {
		role := SectionRole(raw)
		if !role.IsValid() {
			httputil.WriteValidationError(w, "unknown role: "+raw)
			return
		}
		required = &role
	}

	// The unfiltered resolution is cacheable; minimum-role gating is
	// applied on top of the cached snapshot.
	access, err := h.resolveCached(r, sectionID, userID, globalRole)
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve access")
		httputil.WriteInternalError(w, err)
		return
	}
	if access != nil && required != nil && !Satisfies(access.Role, *required) {
		access = nil
	}

	if access == nil {
		h.recordAccessCheck("denied", "none")
		httputil.WriteForbiddenError(w, "insufficient permission")
		return
	}

	h.recordAccessCheck("granted", string(access.Source))
	httputil.WriteSuccess(w, access)
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.service.GetSection(r.Context(), sectionID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !h.requireAccess(w, r, sectionID, RoleAdmin) {
		return
	}

	members, err := h.service.ListMembers(r.Context(), sectionID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list members")
		httputil.WriteInternalError(w, err)
		return
	}
	if members == nil {
		members = []*SectionMember{}
	}
	httputil.WriteSuccess(w, members)
}

type memberRequest struct {
	Role          SectionRole `json:"role"`
	CatalogRoleID *int64      `json:"catalog_role_id,omitempty"`
}

func (h *Handler) handleGrantMember(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	targetUserID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if !h.requireAccess(w, r, sectionID, RoleAdmin) {
		return
	}

	req := memberRequest{Role: RoleViewer}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if !req.Role.IsValid() {
		httputil.WriteValidationError(w, "unknown role: "+string(req.Role))
		return
	}

	member, err := h.service.GrantMember(r.Context(), sectionID, targetUserID, req.Role, req.CatalogRoleID)
	if err != nil {
		h.recordMutation("grant_member", "error")
		h.writeServiceError(w, err)
		return
	}

	h.recordMutation("grant_member", "ok")
	httputil.WriteSuccess(w, member)
}

func (h *Handler) handleUpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	targetUserID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if !h.requireAccess(w, r, sectionID, RoleAdmin) {
		return
	}

	var req memberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if !req.Role.IsValid() {
		httputil.WriteValidationError(w, "unknown role: "+string(req.Role))
		return
	}

	member, err := h.service.UpdateMemberRole(r.Context(), sectionID, targetUserID, req.Role, req.CatalogRoleID)
	if err != nil {
		h.recordMutation("update_member_role", "error")
		h.writeServiceError(w, err)
		return
	}

	h.recordMutation("update_member_role", "ok")
	httputil.WriteSuccess(w, member)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	targetUserID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}
	if !h.requireAccess(w, r, sectionID, RoleAdmin) {
		return
	}

	if err := h.service.RemoveMember(r.Context(), sectionID, targetUserID); err != nil {
		h.recordMutation("remove_member", "error")
		h.writeServiceError(w, err)
		return
	}

	h.recordMutation("remove_member", "ok")
	httputil.WriteNoContent(w)
}

// requireAccess resolves the caller's access and writes a 403 when the
// minimum role is not met. A missing section reads as 403 here; handlers
// that must distinguish 404 fetch the section first.
func (h *Handler) requireAccess(w http.ResponseWriter, r *http.Request, sectionID int64, required SectionRole) bool {
	userID := httputil.UserID(r)
	globalRole := GlobalRole(httputil.GlobalRole(r))

	access, err := h.service.ResolveAccess(r.Context(), sectionID, userID, globalRole, &required)
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve access")
		httputil.WriteInternalError(w, err)
		return false
	}
	if access == nil {
		h.recordAccessCheck("denied", "none")
		httputil.WriteForbiddenError(w, "insufficient permission")
		return false
	}
	h.recordAccessCheck("granted", string(access.Source))
	return true
}

// resolveCached serves the unfiltered resolution from the snapshot cache
// when one is wired, falling back to the resolver on a miss
func (h *Handler) resolveCached(r *http.Request, sectionID, userID int64, globalRole GlobalRole) (*EffectiveAccess, error) {
	start := time.Now()
	defer func() {
		if h.metrics != nil {
			h.metrics.AccessCheckDuration.WithLabelValues("resolver").Observe(time.Since(start).Seconds())
		}
	}()

	// Global admin never touches store or cache.
	if globalRole.IsAdmin() {
		return &EffectiveAccess{Role: RoleAdmin, Source: SourceGlobal}, nil
	}

	if h.cache != nil {
		if payload, ok := h.cache.Get(r.Context(), userID, sectionID); ok {
			var snapshot cachedAccess
			if err := json.Unmarshal(payload, &snapshot); err == nil {
				if !snapshot.HasAccess {
					return nil, nil
				}
				return &EffectiveAccess{Role: snapshot.Role, Source: snapshot.Source}, nil
			}
		}
	}

	access, err := h.service.ResolveAccess(r.Context(), sectionID, userID, globalRole, nil)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		snapshot := cachedAccess{HasAccess: access != nil}
		if access != nil {
			snapshot.Role = access.Role
			snapshot.Source = access.Source
		}
		if payload, err := json.Marshal(snapshot); err == nil {
			h.cache.Set(r.Context(), userID, sectionID, payload)
		}
	}

	return access, nil
}

// cachedAccess is the snapshot stored for a (user, section) pair. Negative
// results are cached too; the invalidation dispatcher busts both kinds.
type cachedAccess struct {
	HasAccess bool         `json:"has_access"`
	Role      SectionRole  `json:"role,omitempty"`
	Source    AccessSource `json:"source,omitempty"`
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.WriteValidationError(w, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case IsNotFound(err):
		httputil.WriteNotFoundError(w, err.Error())
	case IsConflict(err):
		httputil.WriteConflictError(w, err.Error())
	default:
		h.logger.WithError(err).Error("Section operation failed")
		httputil.WriteInternalError(w, err)
	}
}

func (h *Handler) recordMutation(operation, status string) {
	if h.metrics != nil {
		h.metrics.MembershipMutationsTotal.WithLabelValues(operation, status).Inc()
	}
}

func (h *Handler) recordAccessCheck(outcome, source string) {
	if h.metrics != nil {
		h.metrics.AccessChecksTotal.WithLabelValues(outcome, source).Inc()
	}
}
