package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hospitalrecords/internal/services"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

type errorKind struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters only for readability; the kinds do not wrap each other.
var errorKinds = []errorKind{
	{services.ErrAccountNotFound, http.StatusNotFound, "account_not_found", "account not found"},
	{services.ErrAccountLocked, http.StatusLocked, "account_locked", "account is locked, reset your password or contact an administrator"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid username or password"},
	{services.ErrOTPNotFound, http.StatusUnauthorized, "otp_not_found", "no active verification code, request a new one"},
	{services.ErrOTPExpired, http.StatusUnauthorized, "otp_expired", "verification code expired"},
	{services.ErrOTPUsed, http.StatusUnauthorized, "otp_used", "verification code already used"},
	{services.ErrOTPMismatch, http.StatusUnauthorized, "otp_mismatch", "verification code is incorrect"},
	{services.ErrInvalidSession, http.StatusUnauthorized, "invalid_session", "session is not active"},
	{services.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "invalid or expired token"},
	{services.ErrMissingNotificationAddress, http.StatusUnprocessableEntity, "missing_notification_address", "no address to deliver the verification code to"},
	{services.ErrPasswordPolicy, http.StatusBadRequest, "password_policy", services.ErrPasswordPolicy.Error()},
}

// writeError maps a service error onto a status and a stable JSON body.
// Unknown errors become 500 without leaking details.
func writeError(c *gin.Context, err error) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.target) {
			continue
		}
		body := ErrorBody{Error: k.message, Code: k.code}
		var mismatch *services.OTPMismatchError
		if errors.As(err, &mismatch) {
			remaining := mismatch.Remaining
			body.RemainingAttempts = &remaining
		}
		c.JSON(k.status, body)
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal error", Code: "internal"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error(), Code: "bad_request"})
}
