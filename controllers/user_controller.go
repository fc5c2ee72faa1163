package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/middleware"
	"github.com/kendall-kelly/servicepro-api/services"
	"go.uber.org/zap"
)

// UserController serves accounts, profiles and staff management
type UserController struct {
	users    *services.UserService
	userInfo services.UserInfoFetcher
	logger   *zap.Logger
}

// NewUserController creates a user controller. userInfo is only needed for
// externally-authenticated accounts and may be nil.
func NewUserController(users *services.UserService, userInfo services.UserInfoFetcher, logger *zap.Logger) *UserController {
	return &UserController{users: users, userInfo: userInfo, logger: logger}
}

// Signup handles POST /api/v1/auth/signup
func (h *UserController) Signup(c *gin.Context) {
	var in forms.SignupInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.users.Signup(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login
func (h *UserController) Login(c *gin.Context) {
	var in forms.LoginInput
	if !bindJSON(c, &in) {
		return
	}

	token, user, err := h.users.Login(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{
		"token":     token,
		"expiresIn": int(services.TokenTTL.Seconds()),
		"user":      user,
	})
}

// CreateExternalUser handles POST /api/v1/users/external. The profile comes
// from the identity provider's /userinfo endpoint, called with the caller's token.
func (h *UserController) CreateExternalUser(c *gin.Context) {
	subject, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}

	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	if h.userInfo == nil {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "External accounts are disabled.")
		return
	}

	info, err := h.userInfo.GetUserInfo(c.Request.Context(), accessToken)
	if err != nil {
		h.logger.Error("failed to fetch userinfo", zap.String("subject", subject), zap.Error(err))
		respondError(c, http.StatusBadGateway, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
		return
	}

	user, err := h.users.ProvisionExternalUser(c.Request.Context(), subject, info)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, user)
}

// GetMyProfile handles GET /api/v1/users/me
func (h *UserController) GetMyProfile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}

// UpdateMyProfile handles PUT /api/v1/users/me
func (h *UserController) UpdateMyProfile(c *gin.Context) {
	var in forms.ProfileInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.GetSession(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}

// ListTechnicians handles GET /api/v1/technicians
func (h *UserController) ListTechnicians(c *gin.Context) {
	users, err := h.users.ListTechnicians(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, users)
}

// ListStaff handles GET /api/v1/admin/staff
func (h *UserController) ListStaff(c *gin.Context) {
	users, err := h.users.ListStaff(c.Request.Context(), middleware.GetSession(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, users)
}

// AddStaff handles POST /api/v1/admin/staff
func (h *UserController) AddStaff(c *gin.Context) {
	var in forms.StaffInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.users.AddStaff(c.Request.Context(), middleware.GetSession(c), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, user)
}

// UpdateRole handles PUT /api/v1/admin/users/:id/role
func (h *UserController) UpdateRole(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in forms.RoleInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.users.UpdateUserRole(c.Request.Context(), middleware.GetSession(c), id, in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}
