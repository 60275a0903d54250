// Package httpapi is the relay's small REST surface: health and a
// read-only census mirroring relay op 2, served alongside the
// WebSocket upgrade route on one Echo app.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/relay"
	"github.com/Nowayz/WebSocket-Application-Relay/internal/ws"
)

// Server is the Echo application serving both REST and the relay
// upgrade route.
type Server struct {
	echo  *echo.Echo
	relay *relay.Relay
}

// New constructs an Echo app with the relay's websocket + REST routes.
// admission may be nil to disable admission-rate limiting.
func New(r *relay.Relay, admission *rate.Limiter) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, relay: r}
	s.registerRoutes(admission)
	return s
}

// requestLogger returns Echo middleware that logs each HTTP request via slog.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			path := req.URL.Path
			if path == "/relay" || path == "/health" {
				slog.Debug("http request",
					"method", req.Method, "path", path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds())
			} else {
				slog.Info("http request",
					"method", req.Method, "path", path,
					"status", c.Response().Status,
					"duration_ms", time.Since(start).Milliseconds(),
					"remote", c.RealIP())
			}
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes(admission *rate.Limiter) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/census", s.handleCensus)
	ws.NewHandler(s.relay, slog.Default(), admission).Register(s.echo)
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int     `json:"sessions"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: len(s.relay.Registry().AllSessions()),
	})
}

type censusResponse struct {
	Channels []censusChannel `json:"channels"`
}

type censusChannel struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

func (s *Server) handleCensus(c echo.Context) error {
	names, counts := s.relay.Registry().ChannelCensus()
	out := make([]censusChannel, len(names))
	for i := range names {
		out[i] = censusChannel{Name: names[i], Members: int(counts[i])}
	}
	return c.JSON(http.StatusOK, censusResponse{Channels: out})
}
