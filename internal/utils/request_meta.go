package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/tourhub/booking-backend/internal/models"
)

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// RequestMeta collects the caller details recorded with payment audit entries
func RequestMeta(c *gin.Context) models.RequestMeta {
	userAgent := GetUserAgent(c)
	return models.RequestMeta{
		IPAddress:  GetRealIP(c),
		UserAgent:  userAgent,
		DeviceType: ParseUserAgent(userAgent).DeviceType,
		RequestID:  c.GetString(RequestIDKey),
	}
}
