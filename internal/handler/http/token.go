package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

type TokenHandler interface {
	Revoke(w http.ResponseWriter, r *http.Request)
}

type tokenHandlerImpl struct {
	jwtService jwt.Service
}

func NewTokenHandler(jwtService jwt.Service) TokenHandler {
	return &tokenHandlerImpl{
		jwtService: jwtService,
	}
}

type revokeTokenRequest struct {
	Token string `json:"token"`
}

type revokeTokenResponse struct {
	TokenID string `json:"token_id"`
	Revoked bool   `json:"revoked"`
}

// Revoke blocks a device, sweeper or stream token until it expires
func (h *tokenHandlerImpl) Revoke(w http.ResponseWriter, r *http.Request) {
	var req revokeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	if validator.IsEmpty(req.Token) {
		response.HandleError(w, validator.ValidationErrors{
			{Field: "token", Message: "token is required"},
		})
		return
	}

	tokenID, err := h.jwtService.RevokeToken(req.Token)
	if err != nil {
		response.HandleError(w, validator.ValidationErrors{
			{Field: "token", Message: "token is not a valid, unexpired token"},
		})
		return
	}

	slog.Info("Token revoked", "token_id", tokenID, "by", middleware.Subject(r))
	response.SuccessWithMessage(w, "Token revoked", revokeTokenResponse{
		TokenID: tokenID,
		Revoked: true,
	})
}
