// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "description": "Checks the password and sends a one-time code over the configured channel. No token is returned.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Sign in, step 1",
                "parameters": [
                    {"description": "Credentials", "name": "login", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.LoginAck"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "423": {"description": "Locked", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/auth/verify-otp": {
            "post": {
                "description": "Verifies the one-time code and returns a Bearer token bound to a new session.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Sign in, step 2",
                "parameters": [
                    {"description": "Username and code", "name": "verify", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.VerifyOTPRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.LoginResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Sign out",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current account",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/password-reset/request": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Request a password reset code",
                "parameters": [
                    {"description": "Username", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.PasswordResetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/auth/password-reset/confirm": {
            "post": {
                "description": "Replaces the password and clears the account lock.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Reset the password with a one-time code",
                "parameters": [
                    {"description": "Username, code and new password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.ResetPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/admin/accounts/{id}/unlock": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Unlock an account",
                "parameters": [{"type": "integer", "description": "Account ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Account"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/admin/accounts/{id}/sessions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Sessions of an account",
                "parameters": [
                    {"type": "integer", "description": "Account ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Max rows (default 100, at most 1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Session"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/admin/accounts/{id}/sessions/report": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/pdf"],
                "tags": ["Admin"],
                "summary": "Session audit report (PDF)",
                "parameters": [{"type": "integer", "description": "Account ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorBody"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Liveness and database check",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}
            }
        }
    },
    "definitions": {
        "handlers.ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "remaining_attempts": {"type": "integer"}
            }
        },
        "models.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "models.LoginAck": {
            "type": "object",
            "properties": {"account_id": {"type": "integer"}, "username": {"type": "string"}}
        },
        "models.VerifyOTPRequest": {
            "type": "object",
            "required": ["code", "username"],
            "properties": {"username": {"type": "string"}, "code": {"type": "string"}}
        },
        "models.LoginResult": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "token_type": {"type": "string"},
                "expires_in": {"type": "integer"},
                "account_id": {"type": "integer"},
                "username": {"type": "string"},
                "role": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"}
            }
        },
        "models.PasswordResetRequest": {
            "type": "object",
            "required": ["username"],
            "properties": {"username": {"type": "string"}}
        },
        "models.ResetPasswordRequest": {
            "type": "object",
            "required": ["code", "new_password", "username"],
            "properties": {
                "username": {"type": "string"},
                "code": {"type": "string"},
                "new_password": {"type": "string", "minLength": 8, "maxLength": 72}
            }
        },
        "models.Account": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "role": {"type": "string"},
                "failed_attempts": {"type": "integer"},
                "locked": {"type": "boolean"},
                "last_login_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.Session": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "account_id": {"type": "integer"},
                "created_at": {"type": "string"},
                "expires_at": {"type": "string"},
                "origin_address": {"type": "string"},
                "active": {"type": "boolean"},
                "last_activity_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Hospital Records Auth API",
	Description:      "Two-step sign-in (password, then one-time code), sessions and account lockout.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
