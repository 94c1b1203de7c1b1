package public

import (
	handlershared "github.com/wxpay-bridge/internal/http/handlers/shared"
	"github.com/wxpay-bridge/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetOAuthAccessToken 网页授权 code 换取 access_token
func (h *Handler) GetOAuthAccessToken(c *gin.Context) {
	token, err := h.OAuthService.ExchangeCode(c.Request.Context(), c.Query("code"))
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, token)
}
