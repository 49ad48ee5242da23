package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/forgia-ai/bank-convert-billing/internal/types"
)

func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(types.HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUIDWithPrefix(types.UUIDPrefixRequest)
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)

	c.Header(types.HeaderRequestID, requestID)

	c.Next()
}

// UserContextMiddleware lifts the authenticated user id set by the upstream
// gateway into the request context. Authentication itself happens upstream.
func UserContextMiddleware(c *gin.Context) {
	if userID := c.GetHeader(types.HeaderUserID); userID != "" {
		c.Request = c.Request.WithContext(types.SetUserID(c.Request.Context(), userID))
	}
	c.Next()
}
