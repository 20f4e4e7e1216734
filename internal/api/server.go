// Package api exposes bot control and one-shot signal generation over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tradebot-go/internal/bot"
	"tradebot-go/internal/generator"
	"tradebot-go/internal/strategy"
	"tradebot-go/internal/venue"
)

// Server is the control plane for running bots.
type Server struct {
	echo     *echo.Echo
	registry *bot.Registry
	gen      *generator.Generator
	venue    venue.Venue
	log      zerolog.Logger
}

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type startRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	Instrument string `json:"instrument" validate:"required"`
	Strategy   string `json:"strategy" validate:"required"`
	IntervalMs int64  `json:"interval_ms" validate:"omitempty,min=1000"`
}

// New registers every route. v may be nil when no venue is configured.
func New(registry *bot.Registry, gen *generator.Generator, v venue.Venue, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Validator = &requestValidator{v: validator.New()}

	s := &Server{echo: e, registry: registry, gen: gen, venue: v, log: log.With().Str("component", "api").Logger()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug().Str("method", v.Method).Str("uri", v.URI).Int("status", v.Status).Dur("latency", v.Latency).Msg("request")
			return nil
		},
	}))

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/strategies", s.strategies)
	e.GET("/venue", s.venueStatus)
	e.GET("/bots", s.listBots)
	e.POST("/bots", s.startBot)
	e.GET("/bots/:user/:instrument", s.getBot)
	e.DELETE("/bots/:user/:instrument", s.stopBot)
	e.GET("/signals/:instrument", s.signal)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("api listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Data: map[string]any{"status": "ok", "bots": len(s.registry.List())}})
}

func (s *Server) strategies(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Data: s.gen.Catalog().Profiles()})
}

func (s *Server) venueStatus(c echo.Context) error {
	if s.venue == nil {
		return c.JSON(http.StatusNotFound, envelope{Error: "no venue configured"})
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, envelope{Data: map[string]any{
		"name":       s.venue.Name(),
		"connection": s.venue.TestConnection(ctx),
		"balance":    s.venue.GetBalance(ctx),
	}})
}

func (s *Server) listBots(c echo.Context) error {
	return c.JSON(http.StatusOK, envelope{Data: s.registry.List()})
}

func (s *Server) startBot(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: err.Error()})
	}

	runner, started, err := s.registry.Start(bot.Config{
		UserID:     req.UserID,
		Instrument: req.Instrument,
		Strategy:   req.Strategy,
		Interval:   time.Duration(req.IntervalMs) * time.Millisecond,
	})
	switch {
	case errors.Is(err, bot.ErrConflict):
		return c.JSON(http.StatusConflict, envelope{Error: err.Error(), Data: runner.State()})
	case isConfigError(err):
		return c.JSON(http.StatusBadRequest, envelope{Error: err.Error()})
	case err != nil:
		s.log.Error().Err(err).Msg("start bot")
		return c.JSON(http.StatusInternalServerError, envelope{Error: err.Error()})
	}
	status := http.StatusOK
	if started {
		status = http.StatusCreated
	}
	return c.JSON(status, envelope{Data: runner.State()})
}

func (s *Server) getBot(c echo.Context) error {
	runner, ok := s.registry.Get(bot.NewKey(c.Param("user"), c.Param("instrument")))
	if !ok {
		return c.JSON(http.StatusNotFound, envelope{Error: "bot not found"})
	}
	return c.JSON(http.StatusOK, envelope{Data: runner.State()})
}

func (s *Server) stopBot(c echo.Context) error {
	if !s.registry.Stop(bot.NewKey(c.Param("user"), c.Param("instrument"))) {
		return c.JSON(http.StatusNotFound, envelope{Error: "bot not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

// signal runs one cycle without placing an order.
func (s *Server) signal(c echo.Context) error {
	name := c.QueryParam("strategy")
	if name == "" {
		return c.JSON(http.StatusBadRequest, envelope{Error: "strategy query parameter required"})
	}
	sig, err := s.gen.Generate(c.Request().Context(), c.Param("instrument"), name)
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, envelope{Data: map[string]any{"signal": sig}})
}

func isConfigError(err error) bool {
	return errors.Is(err, strategy.ErrUnknownStrategy) || errors.Is(err, strategy.ErrInstrumentNotTargeted)
}

type requestValidator struct{ v *validator.Validate }

func (r *requestValidator) Validate(i any) error { return r.v.Struct(i) }

// sonicSerializer swaps echo's encoding/json for sonic.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	var (
		out []byte
		err error
	)
	if indent != "" {
		out, err = json.ConfigStd.MarshalIndent(i, "", indent)
	} else {
		out, err = json.Marshal(i)
	}
	if err != nil {
		return err
	}
	_, err = c.Response().Write(out)
	return err
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	err := json.ConfigDefault.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}
