package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/testcase-generator/internal/service/testcase"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

type Handlers struct {
	TestCase *TestCaseHandler
}

func NewHandlers(service testcase.TestCaseGenerator, log logger.Logger) *Handlers {
	return &Handlers{
		TestCase: NewTestCaseHandler(service, log),
	}
}

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
