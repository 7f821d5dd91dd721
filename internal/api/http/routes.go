package httpapi

import (
	"bytes"
	"context"
	"errors"
	"html"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/i474232898/openweathermap-exporter/internal/common"
	"github.com/i474232898/openweathermap-exporter/internal/metrics"
	"github.com/i474232898/openweathermap-exporter/internal/weather"
)

const requestIDKey = "requestid"

// Scraper refreshes the weather values before they are exposed.
type Scraper interface {
	Run(ctx context.Context) weather.Report
}

// Exposer writes the current metric values in text exposition format.
type Exposer interface {
	WriteText(w io.Writer) error
}

type RouteOptions struct {
	// MetricsPath defaults to /metrics.
	MetricsPath string
	Metrics     Exposer
	Logger      *slog.Logger
}

// RegisterRoutes wires the exporter handlers into the Fiber app. Every
// request other than GET or HEAD is refused, and unknown paths end in 404.
func RegisterRoutes(app *fiber.App, scraper Scraper, opts RouteOptions) {
	if opts.MetricsPath == "" {
		opts.MetricsPath = common.MetricsPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	app.Use(requestLogger(opts.Logger))
	app.Use(allowReadOnly)

	rootPage := rootHTML(opts.MetricsPath)
	app.Get("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(rootPage)
	})

	app.Get(opts.MetricsPath, func(c *fiber.Ctx) error {
		report := scraper.Run(c.UserContext())

		// Whatever was encoded before a failure is still served.
		var buf bytes.Buffer
		if err := opts.Metrics.WriteText(&buf); err != nil {
			opts.Logger.ErrorContext(c.UserContext(), "encoding metrics failed",
				"request_id", requestID(c),
				"bytes", buf.Len(),
				"error", err,
			)
		}
		if buf.Len() == 0 {
			buf.WriteByte('\n')
		}

		opts.Logger.DebugContext(c.UserContext(), "scrape served",
			"request_id", requestID(c),
			"succeeded", report.Succeeded(),
			"failed", len(report.Failed()),
			"bytes", buf.Len(),
		)

		c.Set(fiber.HeaderContentType, metrics.ContentType)
		return c.Send(buf.Bytes())
	})

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// ErrorHandler renders errors as short plain-text bodies.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}
	switch code {
	case fiber.StatusNotFound:
		message = "Not found"
	case fiber.StatusMethodNotAllowed:
		message = "Method not allowed"
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(code).SendString(message)
}

func allowReadOnly(c *fiber.Ctx) error {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead:
		return c.Next()
	default:
		return fiber.ErrMethodNotAllowed
	}
}

func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}

		logger.InfoContext(c.UserContext(), "http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID(c),
		)
		return err
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

func rootHTML(metricsPath string) string {
	return strings.Join([]string{
		"<html>",
		"<head><title>OpenWeatherMap exporter</title></head>",
		"<body>",
		"<h1>OpenWeatherMap exporter</h1>",
		`<p><a href="` + html.EscapeString(metricsPath) + `">Metrics</a></p>`,
		"</body>",
		"</html>",
		"",
	}, "\n")
}
