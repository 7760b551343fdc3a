// Package http provides the HTTP server implementation for workdesk.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/workdesk/internal/hub"
	"github.com/xiaot623/gogo/workdesk/internal/records"
	"github.com/xiaot623/gogo/workdesk/internal/service"
	v1 "github.com/xiaot623/gogo/workdesk/internal/transport/http/v1"
	"github.com/xiaot623/gogo/workdesk/internal/transport/ws"
)

// Deps are the components served over HTTP.
type Deps struct {
	Service     *service.Service
	Reminders   *records.ReminderBook
	Meetings    *records.MeetingBook
	Predictions *records.PredictionBook
	Hub         *hub.Hub
	WS          ws.Config
	Gatherer    prometheus.Gatherer
	Logger      zerolog.Logger
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(requestLogger(deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(deps.Service, deps.Reminders, deps.Meetings, deps.Predictions, deps.Logger)
	wsServer := ws.NewServer(deps.WS, deps.Hub, deps.Service, deps.Logger)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	e.GET("/ws", wsServer.HandleWebSocket)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"connections": deps.Hub.ConnectionCount(),
		})
	})

	return e
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}
