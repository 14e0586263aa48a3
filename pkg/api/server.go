// Package api serves the derived state over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/engine"
)

// StateProvider is implemented by engine.Engine.
type StateProvider interface {
	Current() *engine.State
	Subscribe() <-chan *engine.State
	CancelSubscription(<-chan *engine.State)
}

type (
	Server struct {
		states StateProvider
		e      *echo.Echo
		srv    *http.Server
		l      *log.Logger
	}
	Option func(*Server)
)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

func New(states StateProvider, opts ...Option) *Server {
	s := &Server{
		states: states,
		e:      echo.New(),
		l:      log.Default().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(_ echo.Context, v echomw.RequestLoggerValues) error {
			fields := []log.Field{
				log.Int("status", v.Status),
				log.String("method", v.Method),
				log.String("uri", v.URI),
			}
			if v.Error != nil {
				fields = append(fields, log.ErrorField(v.Error))
			}
			switch {
			case v.Status >= 500:
				s.l.Error("http request", fields...)
			case v.Status >= 400:
				s.l.Warn("http request", fields...)
			default:
				s.l.Debug("http request", fields...)
			}
			return nil
		},
	}))
	s.e.Use(echomw.Recover())

	g := s.e.Group("/api")
	g.GET("/state", s.getState)
	g.GET("/leaderboard", s.getLeaderboard)
	g.GET("/finals", s.getFinals)
	g.GET("/bracket", s.getBracket)
	g.GET("/races/:id/ranking", s.getRaceRanking)
	g.GET("/races/:id/metrics", s.getRaceMetrics)
	g.GET("/stream", s.stream)
	g.POST("/validate/next-race-overrides", s.validateNextRaceOverrides)
	return s
}

// Handler returns the routes wrapped with the CORS handler.
func (s *Server) Handler() http.Handler {
	return newCORS().Handler(s.e)
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.l.Info("Starting HTTP server", log.String("addr", addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		MaxAge:         int(2 * time.Hour / time.Second),
	})
}
