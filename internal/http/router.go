package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/craftbridge/catalog-backend/internal/http/handlers"
	httpMW "github.com/craftbridge/catalog-backend/internal/http/middleware"
	"github.com/craftbridge/catalog-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	UploadHandler *httpH.UploadHandler
	StatusHandler *httpH.StatusHandler
	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("catalog-backend"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	v1 := r.Group("/v1/catalog")
	{
		if cfg.UploadHandler != nil {
			v1.POST("/upload/initiate", cfg.UploadHandler.Initiate)
			v1.POST("/upload/complete", cfg.UploadHandler.Complete)
			v1.POST("/upload/:trackingId/parts", cfg.UploadHandler.RecordPart)
			v1.GET("/upload/:trackingId/resume", cfg.UploadHandler.Resume)
			v1.POST("/upload/:trackingId/abort", cfg.UploadHandler.Abort)
		}

		if cfg.StatusHandler != nil {
			v1.GET("/status/:trackingId", cfg.StatusHandler.GetStatus)
		}
	}

	return r
}
