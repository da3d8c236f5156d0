// Package api provides a read-only HTTP status API for a running chat
// server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenchat/zenchat/pkg/server"
)

// Server serves status endpoints next to the chat listener.
type Server struct {
	chat       *server.Server
	router     *gin.Engine
	httpServer *http.Server
}

// StatusResponse describes the running server.
type StatusResponse struct {
	Uptime    string `json:"uptime"`
	UserCount int    `json:"userCount"`
	GamePhase string `json:"gamePhase"`
}

// UsersResponse lists the logged-in usernames.
type UsersResponse struct {
	Users []string `json:"users"`
}

// NewServer creates the status API for a chat server.
func NewServer(chat *server.Server, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		chat:   chat,
		router: router,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/users", s.handleUsers)
	}

	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Uptime:    s.chat.Uptime().Round(time.Second).String(),
		UserCount: s.chat.Registry().Count(),
		GamePhase: s.chat.Game().Phase().String(),
	})
}

func (s *Server) handleUsers(c *gin.Context) {
	users := s.chat.Registry().Names()
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, UsersResponse{Users: users})
}
