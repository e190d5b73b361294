package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/echoroom/echoroom-server/internal/avatar"
	"github.com/echoroom/echoroom-server/internal/config"
	"github.com/echoroom/echoroom-server/internal/core"
	"github.com/echoroom/echoroom-server/internal/store"
)

// NewServer builds the HTTP server: REST surface plus the websocket
// bridge into the hub. avatarMgr may be nil when the integration is
// disabled.
func NewServer(hub *core.Hub, st store.Store, avatarMgr *avatar.Manager, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	roomHandlers := NewRoomHandlers(st, logger)
	avatarHandlers := NewAvatarHandlers(avatarMgr, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms", roomHandlers.ListRooms)
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.POST("/rooms/match", roomHandlers.MatchRoom)
		api.GET("/rooms/:id/avatar", avatarHandlers.JoinInfo)
	}

	wsHandler := NewWSHandler(hub, cfg.MaxEventsPerMinute, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
