package config

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"PlateRecognition/pkg/handlerUtil"
	"PlateRecognition/pkg/log"
)

func NewFiber(logger *logrus.Logger, cfg *Config) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName: cfg.AppName,
			// Multipart framing adds to the file size; oversized files are rejected by the handler.
			BodyLimit:         int(2 * cfg.MaxUploadSize),
			DisableKeepalive:  false,
			CaseSensitive:     true,
			EnablePrintRoutes: cfg.AppEnv == "development",
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      newErrorHandler(logger),
		})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	return app
}

func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		if code >= fiber.StatusInternalServerError {
			logger.WithFields(log.Fields{
				"path":  c.Path(),
				"error": err.Error(),
			}).Error("Unhandled error")
		}

		return c.Status(code).JSON(handlerUtil.ErrorResponse{Error: err.Error()})
	}
}
