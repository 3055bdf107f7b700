package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/voicebridge/internal/adapters/signal"
	"github.com/dkeye/voicebridge/internal/app/orch"
	"github.com/dkeye/voicebridge/internal/config"
	"github.com/dkeye/voicebridge/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionDisplayName = "display_name"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware gives every browser an opaque identity cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set(signal.ClientTokenKey, token)
		c.Next()
	}
}

// DisplayNameMiddleware exposes the name saved via POST /api/profile.
func DisplayNameMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name, ok := sessions.Default(c).Get(sessionDisplayName).(string); ok {
			c.Set(signal.DisplayNameKey, name)
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ctl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VoiceSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(DisplayNameMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": len(o.ListRooms()), "connections": o.Registry.Count()})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.ListRooms())
	})
	api.GET("/rooms/:name", func(c *gin.Context) {
		room, err := o.GetRoom(c.Param("name"))
		if err != nil {
			c.JSON(statusOf(err), gin.H{"error": domain.Reason(err)})
			return
		}
		c.JSON(http.StatusOK, room)
	})
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, cfg.ICEServerList())
	})
	api.GET("/profile", func(c *gin.Context) {
		name, _ := sessions.Default(c).Get(sessionDisplayName).(string)
		c.JSON(http.StatusOK, gin.H{"name": name})
	})
	api.POST("/profile", func(c *gin.Context) {
		var p struct {
			Name string `json:"name"`
		}
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		var u domain.User
		if err := u.SetUsername(p.Name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.Reason(err)})
			return
		}
		s := sessions.Default(c)
		s.Set(sessionDisplayName, u.Username)
		if err := s.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": u.Username})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("ct", c.GetString(signal.ClientTokenKey)).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRoomName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
