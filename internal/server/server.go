package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"templateshop/internal/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo *echo.Echo
	cfg  config.Config
}

// New は共通ミドルウェアを積んだechoを作り、ルートを登録する
func New(cfg config.Config, log *slog.Logger, h Handlers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError || v.Error != nil {
				level = slog.LevelError
			}
			log.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	RegisterRoutes(e, cfg, h)
	return &Server{echo: e, cfg: cfg}
}

func (s *Server) Echo() *echo.Echo { return s.echo }

// Start はShutdownされるまで戻らない。正常終了ならnil
func (s *Server) Start() error {
	err := s.echo.Start(s.cfg.HTTP.Addr())
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
