package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"todocal/internal/model"
	"todocal/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	Token string             `json:"token"`
	User  *model.UserSummary `json:"user"`
}

// MeResponse wraps the current user.
type MeResponse struct {
	User *model.UserSummary `json:"user"`
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error())
	}

	token, user, err := h.authService.Register(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login godoc
// @Summary Login user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}

	if err := c.Validate(&req); err != nil {
		return badRequest(err.Error())
	}

	token, user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Me(c.Request().Context(), claims.UserID)
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, MeResponse{User: user})
}

// Logout godoc
// @Summary Revoke the current session token
// @Tags auth
// @Security BearerAuth
// @Success 204 "No Content"
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), claims); err != nil {
		return fail(err)
	}

	return c.NoContent(http.StatusNoContent)
}
