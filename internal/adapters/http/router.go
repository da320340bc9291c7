package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/videochat/internal/adapters/rtc"
	"github.com/dkeye/videochat/internal/adapters/signal"
	"github.com/dkeye/videochat/internal/app/orch"
	"github.com/dkeye/videochat/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("VideochatSessions", store))
	r.Use(signal.ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(o, cfg)
	ice := rtc.NewICEConfig(cfg.ICEServers)
	index := filepath.Join(cfg.StaticPath, "index.html")

	r.Static("/static", cfg.StaticPath)

	// Existing clients dial the bare root, so it doubles as the signaling endpoint.
	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ctrl.HandleSignal(ctx, c)
			return
		}
		c.File(index)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/ice", func(c *gin.Context) {
		c.JSON(http.StatusOK, ice)
	})

	api.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"users": o.Registry.Snapshot()})
	})

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Stats.Snapshot(o.Registry.Len()))
	})

	return r
}
