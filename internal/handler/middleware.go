package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/kursadbilgin/followupos/internal/observability"
)

// RequestContext copies the request id set by the requestid middleware into
// the user context so service logs carry it.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID, _ := c.Locals("requestid").(string)
		if requestID == "" {
			requestID = c.Get(fiber.HeaderXRequestID)
		}
		if requestID != "" {
			requestID = utils.CopyString(requestID)
			c.SetUserContext(observability.WithRequestID(c.UserContext(), requestID))
		}
		return c.Next()
	}
}
