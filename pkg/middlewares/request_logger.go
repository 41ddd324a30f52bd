// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rapidaai/speech-collector/pkg/commons"
)

const HEADER_REQUEST_ID = "X-Request-Id"

// NewRequestLoggerMiddleware tags every request with an id (kept when the
// caller already sent one) and logs its outcome.
func NewRequestLoggerMiddleware(serviceName string, logger commons.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HEADER_REQUEST_ID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestId", requestID)
		c.Header(HEADER_REQUEST_ID, requestID)

		c.Next()

		logger.Infow("request",
			"service", serviceName,
			"requestId", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"clientIp", c.ClientIP(),
			"errors", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
