package resourceserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sparkvibe/sparkvibe/internal/logger"
)

const maxLoggedBody = 1024

// requestLogger logs one http_request entry per request. It runs after the
// requestid middleware so the id is already on the response.
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		statusCode := c.Response().StatusCode()
		details := map[string]interface{}{
			"method":        c.Method(),
			"path":          c.Path(),
			"status_code":   statusCode,
			"latency_ms":    time.Since(start).Milliseconds(),
			"ip":            c.IP(),
			"request_body":  bodySummary(c.Body()),
			"response_size": len(c.Response().Body()),
			"request_id":    c.GetRespHeader(fiber.HeaderXRequestID),
		}
		if statusCode >= 400 {
			logger.Error("http_request", err, details)
		} else {
			logger.Info("http_request", details)
		}
		return err
	}
}

// bodySummary renders a request body for the log: small JSON objects are
// logged with secrets redacted, anything else by size only.
func bodySummary(body []byte) string {
	if len(body) == 0 {
		return "empty"
	}
	if len(body) > maxLoggedBody {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Sprintf("non-object (%d bytes)", len(body))
	}
	logger.Redact(fields)
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf("non-object (%d bytes)", len(body))
	}
	if len(data) > 200 {
		return string(data[:200]) + "..."
	}
	return string(data)
}
