package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberstore/emberstore/internal/auth"
	"github.com/emberstore/emberstore/internal/domain"
	"github.com/emberstore/emberstore/internal/service"
)

// AdminHandler serves the JSON management API. Every route requires an
// authenticated caller holding the admin or root role.
type AdminHandler struct {
	userService   *service.UserService
	iamService    *service.IAMService
	policyService *service.PolicyService
	logger        zerolog.Logger
}

// AdminHandlerConfig contains configuration for the admin handler.
type AdminHandlerConfig struct {
	UserService   *service.UserService
	IAMService    *service.IAMService
	PolicyService *service.PolicyService
	Logger        zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		userService:   cfg.UserService,
		iamService:    cfg.IAMService,
		policyService: cfg.PolicyService,
		logger:        cfg.Logger.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.requireAdmin)

	// User management
	r.Get("/users", h.handleListUsers)
	r.Post("/users", h.handleCreateUser)
	r.Get("/users/{id}", h.handleGetUser)
	r.Delete("/users/{id}", h.handleDeleteUser)
	r.Put("/users/{id}/active", h.handleSetActive)
	r.Post("/users/{id}/roles", h.handleAssignRole)
	r.Delete("/users/{id}/roles/{role}", h.handleRevokeRole)

	// Access key management
	r.Get("/users/{id}/access-keys", h.handleListAccessKeys)
	r.Post("/users/{id}/access-keys", h.handleCreateAccessKey)
	r.Put("/access-keys/{accessKeyId}/status", h.handleSetAccessKeyStatus)
	r.Delete("/access-keys/{accessKeyId}", h.handleDeleteAccessKey)

	// User policy management
	r.Get("/users/{id}/policies", h.handleListUserPolicies)
	r.Post("/users/{id}/policies", h.handlePutUserPolicy)
	r.Delete("/policies/{policyId}", h.handleDeletePolicy)
}

// requireAdmin rejects callers without the admin or root role.
func (h *AdminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.GetAuthContext(r.Context())
		if authCtx == nil || authCtx.IsAnonymous() || !hasAnyRole(authCtx.Roles, domain.RoleAdmin, domain.RoleRoot) {
			writeJSONError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Users
// =============================================================================

type createUserRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

func (h *AdminHandler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	out, err := h.userService.Create(r.Context(), service.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, out.User)
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	out, err := h.userService.List(r.Context(), service.ListUsersInput{Limit: limit, Offset: offset})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": out.Users,
		"total": out.TotalCount,
	})
}

func (h *AdminHandler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), user.ID); err != nil {
		h.writeUserError(w, err)
		return
	}

	// Policies attached to the deleted user are dead weight, drop them.
	if _, err := h.policyService.DeletePoliciesForUser(r.Context(), user.Username); err != nil {
		h.logger.Warn().Err(err).Str("username", user.Username).Msg("failed to delete user policies")
	}

	w.WriteHeader(http.StatusNoContent)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *AdminHandler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.userService.SetActive(r.Context(), user.ID, req.Active); err != nil {
		h.writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.userService.AssignRole(r.Context(), user.ID, req.Role); err != nil {
		h.writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	if err := h.userService.RevokeRole(r.Context(), user.ID, chi.URLParam(r, "role")); err != nil {
		h.writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Access Keys
// =============================================================================

type createAccessKeyRequest struct {
	Description string     `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (h *AdminHandler) handleCreateAccessKey(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	var req createAccessKeyRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	out, err := h.iamService.CreateAccessKey(r.Context(), service.CreateAccessKeyInput{
		UserID:      user.ID,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	// The plaintext secret is returned exactly once.
	writeJSON(w, http.StatusCreated, map[string]any{
		"access_key_id": out.AccessKeyID,
		"secret_key":    out.SecretKey,
		"access_key":    out.AccessKey,
	})
}

func (h *AdminHandler) handleListAccessKeys(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	keys, err := h.iamService.ListAccessKeys(r.Context(), service.ListAccessKeysInput{UserID: user.ID})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"access_keys": keys})
}

type accessKeyStatusRequest struct {
	Status domain.AccessKeyStatus `json:"status"`
}

func (h *AdminHandler) handleSetAccessKeyStatus(w http.ResponseWriter, r *http.Request) {
	accessKeyID := chi.URLParam(r, "accessKeyId")

	var req accessKeyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var err error
	switch req.Status {
	case domain.AccessKeyStatusActive:
		err = h.iamService.ActivateAccessKey(r.Context(), accessKeyID)
	case domain.AccessKeyStatusInactive:
		err = h.iamService.DeactivateAccessKey(r.Context(), accessKeyID)
	default:
		writeJSONError(w, http.StatusBadRequest, "status must be Active or Inactive")
		return
	}
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleDeleteAccessKey(w http.ResponseWriter, r *http.Request) {
	if err := h.iamService.DeleteAccessKey(r.Context(), chi.URLParam(r, "accessKeyId")); err != nil {
		h.writeUserError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// User Policies
// =============================================================================

func (h *AdminHandler) handlePutUserPolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	document, err := io.ReadAll(io.LimitReader(r.Body, maxPolicyDocumentSize+1))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if len(document) > maxPolicyDocumentSize {
		writeJSONError(w, http.StatusBadRequest, "policy document too large")
		return
	}

	policy, err := h.policyService.PutUserPolicy(r.Context(), user.Username, document)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, policy)
}

func (h *AdminHandler) handleListUserPolicies(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userFromPath(w, r)
	if !ok {
		return
	}

	policies, err := h.policyService.ListUserPolicies(r.Context(), user.Username)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (h *AdminHandler) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "policyId"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid policy ID")
		return
	}

	if err := h.policyService.DeleteUserPolicy(r.Context(), id); err != nil {
		h.writeUserError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

// userFromPath resolves the {id} path parameter to a user, writing the
// error response itself on failure.
func (h *AdminHandler) userFromPath(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid user ID")
		return nil, false
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		h.writeUserError(w, err)
		return nil, false
	}

	return user, true
}

// writeUserError maps service errors to JSON error responses.
func (h *AdminHandler) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrAccessKeyNotFound),
		errors.Is(err, service.ErrPolicyNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUserAlreadyExists):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidPassword),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidPolicy),
		errors.Is(err, service.ErrMaxAccessKeysReached):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserInactive):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrPolicyLockBusy):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("admin request failed")
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

func hasAnyRole(roles []string, wanted ...string) bool {
	for _, role := range roles {
		for _, want := range wanted {
			if strings.EqualFold(role, want) {
				return true
			}
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
