package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"hospitalrecords/internal/middleware"
	"hospitalrecords/internal/models"
)

type AuthService interface {
	Login(ctx context.Context, username, password, origin string) (*models.LoginAck, error)
	CompleteLogin(ctx context.Context, username, code, origin string) (*models.LoginResult, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, username string) error
	ResetPassword(ctx context.Context, username, code, newPassword string) error
}

type AuthHandler struct {
	authService AuthService
}

func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// @Summary      Sign in, step 1
// @Description  Checks the password and sends a one-time code over the configured channel. No token is returned.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  models.LoginAck
// @Failure      400    {object}  ErrorBody
// @Failure      401    {object}  ErrorBody
// @Failure      404    {object}  ErrorBody
// @Failure      423    {object}  ErrorBody
// @Failure      422    {object}  ErrorBody
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ack, err := h.authService.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// @Summary      Sign in, step 2
// @Description  Verifies the one-time code and returns a Bearer token bound to a new session.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        verify  body      models.VerifyOTPRequest  true  "Username and code"
// @Success      200     {object}  models.LoginResult
// @Failure      400     {object}  ErrorBody
// @Failure      401     {object}  ErrorBody
// @Failure      404     {object}  ErrorBody
// @Router       /auth/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.authService.CompleteLogin(c.Request.Context(), req.Username, req.Code, c.ClientIP())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Sign out
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  ErrorBody
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.CtxToken)
	if token == "" {
		token = c.GetHeader("Authorization")
	}
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// @Summary      Request a password reset code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body      models.PasswordResetRequest  true  "Username"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  ErrorBody
// @Failure      404      {object}  ErrorBody
// @Router       /auth/password-reset/request [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Username); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

// @Summary      Reset the password with a one-time code
// @Description  Replaces the password and clears the account lock.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body      models.ResetPasswordRequest  true  "Username, code and new password"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  ErrorBody
// @Failure      401      {object}  ErrorBody
// @Router       /auth/password-reset/confirm [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req.Username, req.Code, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// @Summary      Current account
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	accountID, role := getAccountAndRole(c)
	c.JSON(http.StatusOK, gin.H{
		"account_id": accountID,
		"username":   c.GetString(middleware.CtxUsername),
		"role":       role,
	})
}
