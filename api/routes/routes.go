package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/testcase-generator/api/handlers"
	"github.com/feichai0017/testcase-generator/api/middleware"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, log logger.Logger, origins []string) {
	// 全局中间件
	r.Use(middleware.RequestID(), middleware.AccessLog(log), middleware.CORS(origins))

	r.GET("/health", handlers.Health)

	v1 := r.Group("/api/v1")

	tc := v1.Group("/testcases")
	{
		tc.POST("", h.TestCase.Generate)
		tc.GET("/:token/download", h.TestCase.Download)

		jobs := tc.Group("/jobs")
		jobs.POST("", h.TestCase.SubmitJob)
		jobs.GET("/:taskId", h.TestCase.GetJobStatus)
		jobs.DELETE("/:taskId", h.TestCase.CancelJob)
	}
}
