package models

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginAck is returned by the password step. It carries identity only, the
// token is issued after the code is verified.
type LoginAck struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
}

type VerifyOTPRequest struct {
	Username string `json:"username" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

type LoginResult struct {
	Token            string `json:"token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int64  `json:"expires_in"`
	AccountID        int64  `json:"account_id"`
	Username         string `json:"username"`
	Role             string `json:"role"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
}
