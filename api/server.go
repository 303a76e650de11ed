package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/judgegodwins/ludo-server/chat"
	"github.com/judgegodwins/ludo-server/rooms"
	"github.com/judgegodwins/ludo-server/store"
	"github.com/judgegodwins/ludo-server/tokens"
	"github.com/judgegodwins/ludo-server/util"
	"github.com/judgegodwins/ludo-server/ws"
	"github.com/rs/cors"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	config    *util.Config
	wsManager *ws.Manager
	router    *gin.Engine
	store     store.Store
	rooms     *rooms.Directory
	chat      *chat.Channel
	tokens    tokens.Maker
}

func NewServer(config *util.Config, st store.Store, maker tokens.Maker, roomOpts ...rooms.Option) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	if config.Verbose {
		router.Use(gin.Logger())
	}

	directory := rooms.NewDirectory(st, roomOpts...)
	messages := chat.NewChannel(st)

	server := &Server{
		config: config,
		wsManager: ws.NewManager(ws.Options{
			Tokens:         maker,
			Store:          st,
			Directory:      directory,
			Chat:           messages,
			AllowedOrigins: config.AllowedOrigins,
		}),
		router: router,
		store:  st,
		rooms:  directory,
		chat:   messages,
		tokens: maker,
	}

	router.GET("/healthz", server.Health)
	router.Any("/ws", server.wsManager.ServeWS)

	auth := router.Group("/auth")
	auth.POST("/username", server.TokenGenerator)
	auth.GET("/me", server.AuthMiddleware, server.GetTokenData)

	room := router.Group("/rooms")
	room.GET("/:code", server.CheckRoom)
	room.GET("/:code/qr", server.RoomQR)

	room.Use(server.AuthMiddleware)
	room.POST("", server.CreateRoom)
	room.POST("/:code/join", server.JoinRoom)
	room.POST("/:code/leave", server.LeaveRoom)
	room.POST("/:code/start", server.StartGame)
	room.GET("/:code/messages", server.RoomMessages)
	room.DELETE("/:code", server.EndGame)

	return server
}

// Handler is the router wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(s.router)
}

// Start serves until ctx is cancelled, then drains open requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
