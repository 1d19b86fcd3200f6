// Package api serves the control-plane HTTP API. The sender exposes the
// detected physical controllers and their number assignments; the
// receiver exposes the virtual controllers and reset operations.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/padlink/padlink/pkg/api/handlers"
)

// Router holds the Gin engine and dependencies.
type Router struct {
	engine *gin.Engine
}

// NewSenderRouter creates the API router served by the sender process.
// linkUp reports whether the uplink to the receiver is connected.
func NewSenderRouter(registry handlers.ControllerRegistry, linkUp func() bool) *Router {
	r := newRouter()

	healthHandler := handlers.NewHealthHandler(linkUp)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		controllersHandler := handlers.NewControllersHandler(registry)
		controllers := v1.Group("/controllers")
		{
			controllers.GET("", controllersHandler.ListControllers)
			controllers.POST("/:id/number", controllersHandler.AssignNumber)
			controllers.DELETE("/:id/number", controllersHandler.UnassignNumber)
			controllers.POST("/:id/input-method", controllersHandler.SetInputMethod)
		}
	}

	return r
}

// NewReceiverRouter creates the API router served by the receiver
// process. linkUp reports whether the websocket listener is running.
func NewReceiverRouter(manager handlers.VirtualManager, linkUp func() bool) *Router {
	r := newRouter()

	healthHandler := handlers.NewHealthHandler(linkUp)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		virtualHandler := handlers.NewVirtualHandler(manager)
		controllers := v1.Group("/controllers")
		{
			controllers.GET("", virtualHandler.ListControllers)
			controllers.POST("/reset", virtualHandler.ResetAll)
			controllers.POST("/:number/reset", virtualHandler.ResetController)
		}
	}

	return r
}

func newRouter() *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	return &Router{engine: engine}
}

// Handler exposes the router as an http.Handler.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run starts the HTTP server.
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
