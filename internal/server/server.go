// Package server exposes the task store over HTTP for the web UI,
// notification senders, and export consumers.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/estateops/taskdesk/internal/logger"
	"github.com/estateops/taskdesk/store"
)

type Server struct {
	tasks   store.TaskStore
	archive store.ArchiveStore
	echo    *echo.Echo
	log     zerolog.Logger
	port    int
}

// New wires the HTTP API around an initialized task store and archive store.
func New(port int, tasks store.TaskStore, archive store.ArchiveStore) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		tasks:   tasks,
		archive: archive,
		echo:    e,
		log:     logger.Get(),
		port:    port,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := s.log.Info()
			if v.Error != nil {
				evt = s.log.Error().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))

	s.registerRoutes()
	return s
}

// registerRoutes sets up all API endpoints.
func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	api.GET("/tasks", s.handleListTasks)
	api.POST("/tasks", s.handleCreateTasks)
	api.PATCH("/tasks", s.handlePatchTasksBatch)
	api.DELETE("/tasks", s.handleDeleteTasksBatch)
	api.GET("/tasks/calendar.ics", s.handleCalendarAll)
	api.GET("/tasks/export.xlsx", s.handleExportXLSX)

	api.GET("/tasks/:id", s.handleGetTask)
	api.PATCH("/tasks/:id", s.handlePatchTask)
	api.DELETE("/tasks/:id", s.handleDeleteTask)

	api.POST("/tasks/:id/thread", s.handleAppendThread)
	api.POST("/tasks/:id/participants", s.handleAddParticipant)
	api.PUT("/tasks/:id/link", s.handleSetLink)
	api.POST("/tasks/:id/archive", s.handleArchiveTask)

	api.POST("/tasks/:id/attachments", s.handleUploadAttachment)
	api.GET("/tasks/:id/attachments/:attId", s.handleStreamAttachment)
	api.DELETE("/tasks/:id/attachments/:attId", s.handleDeleteAttachment)

	api.GET("/tasks/:id/calendar.ics", s.handleCalendarOne)
	api.GET("/tasks/:id/print", s.handlePrintTask)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info().Str("addr", addr).Msg("taskdesk API listening")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the root handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
