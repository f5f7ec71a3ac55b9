// Package server exposes the enrichment service over HTTP: upload a CSV,
// search the catalog, match and join against the chosen dataset, download
// the enriched result. Uploads and results are scoped to a cookie-bound
// session.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"enrich/internal/catalog"
	"enrich/internal/match"
	"enrich/internal/portal"
	"enrich/internal/session"
)

const sessionCookie = "enrich_session"

// Server wires the HTTP surface to the catalog, the matcher and the
// portal.
type Server struct {
	e         *echo.Echo
	store     catalog.Store
	sessions  *session.Manager
	suggester match.Suggester
	portal    *portal.Client
}

// New assembles the echo app and its routes.
func New(store catalog.Store, suggester match.Suggester, pc *portal.Client) *Server {
	s := &Server{
		e:         echo.New(),
		store:     store,
		sessions:  session.NewManager(),
		suggester: suggester,
		portal:    pc,
	}

	s.e.HideBanner = true
	s.e.Use(middleware.Recover())

	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	s.e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s: %v", code, req.Method, req.URL.Path, err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}

	s.e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	api := s.e.Group("/api")
	api.POST("/upload", s.upload)
	api.GET("/catalog/tags", s.tags)
	api.GET("/catalog/keywords", s.keywords)
	api.POST("/match", s.match)
	api.GET("/download", s.download)

	return s
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Echo exposes the underlying app for tests.
func (s *Server) Echo() *echo.Echo { return s.e }

// sessionID returns the request's session id, minting a cookie on first
// contact.
func (s *Server) sessionID(c echo.Context) string {
	if ck, err := c.Cookie(sessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	id := s.sessions.NewID()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
	})
	return id
}
