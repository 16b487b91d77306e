package http

import (
	"context"
	"net/http"

	"github.com/dkeye/jsonrpcd/internal/adapters/poll"
	"github.com/dkeye/jsonrpcd/internal/adapters/signal"
	"github.com/dkeye/jsonrpcd/internal/app"
	"github.com/dkeye/jsonrpcd/internal/app/protocol"
	"github.com/dkeye/jsonrpcd/internal/app/rooms"
	"github.com/dkeye/jsonrpcd/internal/config"
	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ReasonAdminClose is reported to the handler for sessions closed over the API.
const ReasonAdminClose = "closed by administrator"

// Deps are the collaborators the routes talk to.
type Deps struct {
	Manager  *protocol.Manager
	Registry *app.Registry
	Rooms    *rooms.Manager
	WS       *signal.Controller
	Poll     *poll.Controller
	Gatherer prometheus.Gatherer
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("JSONRPCSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": deps.Registry.Len()})
	})
	if deps.Gatherer != nil {
		r.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	rpc := r.Group("/jsonrpc")
	rpc.GET("", func(c *gin.Context) {
		deps.WS.HandleWS(ctx, c)
	})
	rpc.POST("/http", deps.Poll.HandleHTTP)

	api := r.Group("/api")

	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": deps.Registry.List()})
	})

	api.DELETE("/sessions/:id", func(c *gin.Context) {
		id := core.SessionID(c.Param("id"))
		if !deps.Manager.CloseSessionByID(id, ReasonAdminClose) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": deps.Rooms.List()})
	})

	log.Info().Str("module", "adapters.http").Str("metrics", cfg.MetricsPath).Msg("router setup")
	return r
}
