package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/emotion/internal/api/handlers"
)

type RouterConfig struct {
	AllowedOrigins []string
	DefaultDevice  string

	Manager   handlers.BatchApplier
	Summaries handlers.SummaryReader
	Relay     handlers.FrameRelay
	Checks    map[string]handlers.Check

	// Hub is required; it serves /ws and receives local dashboard events.
	Hub interface {
		handlers.EventBroadcaster
		HandleWS(c *gin.Context)
	}

	// Optional replica fan-out.
	Events handlers.EventPublisher
	Frames handlers.FramePublisher
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
	}))

	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/", systemH.Healthz)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", cfg.Hub.HandleWS)

	streamH := handlers.NewStreamHandler(cfg.Relay)
	if cfg.Frames != nil {
		streamH.Publisher = cfg.Frames
	}
	r.GET("/stream/:device_id", streamH.Stream)

	emotionH := handlers.NewEmotionHandler(cfg.Manager, cfg.Summaries, cfg.DefaultDevice)
	emotionH.Broadcaster = cfg.Hub
	if cfg.Events != nil {
		emotionH.Publisher = cfg.Events
	}

	api := r.Group("/api")
	api.POST("/stream/frame", streamH.UploadFrame)
	api.GET("/stream/latest/:device_id", streamH.Latest)
	api.GET("/stream/stats", streamH.Stats)
	api.POST("/emotions/batch", emotionH.IngestBatch)
	api.GET("/dashboard/summary", emotionH.Summary)

	return r
}
