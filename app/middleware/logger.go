package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"gridpool/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/pretty"
)

// Logger logs one line per request: status, latency, client and route.
// POST bodies are captured before the handler consumes them.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var bodyStr string
		if c.Request.Method == http.MethodPost {
			bodyStr = getRequestBody(c)
		}

		c.Next()

		// Skip logging for 404 requests
		if c.Writer.Status() == http.StatusNotFound {
			return
		}

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		reqMethod := c.Request.Method
		reqURI := c.Request.RequestURI

		logMsg := fmt.Sprintf("[HTTP] %3d | %13v | %15s | %s %s",
			statusCode,
			latency,
			clientIP,
			reqMethod,
			reqURI,
		)
		if bodyStr != "" {
			logMsg += fmt.Sprintf(" | body: %s", bodyStr)
		}

		if statusCode >= http.StatusInternalServerError {
			logger.WarnCtx(c.Request.Context(), "%s", logMsg)
		} else {
			logger.InfoCtx(c.Request.Context(), "%s", logMsg)
		}
	}
}

// getRequestBody gets request body content and rewinds the reader
func getRequestBody(c *gin.Context) string {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
		// Reset request body since reading it clears it
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	return CompressBody(string(bodyBytes))
}

// CompressBody strips whitespace from a JSON body and caps its logged length
func CompressBody(body string) string {
	if len(body) == 0 {
		return ""
	}

	compressed := pretty.Ugly([]byte(body))
	if len(compressed) > 1000 {
		return string(compressed[:1000]) + "..."
	}
	return string(compressed)
}
