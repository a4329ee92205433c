package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"houzel-server/internal/config"
	"houzel-server/internal/interfaces/httpserver/routes/v1/chat"
	"houzel-server/internal/interfaces/httpserver/routes/v1/image"
)

type V1Route struct {
	chat  *chat.ChatRoute
	image *image.ImageRoute
}

func NewV1Route(
	chat *chat.ChatRoute,
	image *image.ImageRoute,
) *V1Route {
	return &V1Route{
		chat:  chat,
		image: image,
	}
}

func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
	v1Router.GET("/healthz", GetHealthz)
	v1Router.GET("/readyz", GetReadyz)

	v1Route.chat.RegisterRouter(v1Router)
	v1Route.image.RegisterRouter(v1Router)
}

func GetVersion(c *gin.Context) {
	body := gin.H{"version": config.Version}
	if cfg := config.GetGlobal(); cfg != nil {
		body["env_reloaded_at"] = cfg.EnvReloadedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

func GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func GetReadyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
