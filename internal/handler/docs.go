package handler

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed openapi.yaml
var openAPI []byte

// Docs serves the OpenAPI document.
func Docs(r gin.IRouter) {
	r.GET("/api-docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openAPI)
	})
}
