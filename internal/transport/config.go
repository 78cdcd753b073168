package transport

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// FiberConfig is the app configuration shared by the API and its tests.
func FiberConfig(appName string, logger *zap.Logger) fiber.Config {
	return fiber.Config{
		AppName:      appName,
		ErrorHandler: ErrorHandler(logger),
		JSONEncoder:  jsonCodec.Marshal,
		JSONDecoder:  jsonCodec.Unmarshal,
	}
}
