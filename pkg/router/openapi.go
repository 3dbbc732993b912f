package router

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"langgraph-chat/app/pkg/validator"
)

// AddOpenAPIValidation validates API requests against the schema at schemaPath,
// or the embedded wire contract when schemaPath is empty.
// It must be called before SetupRoutes.
func (r *Router) AddOpenAPIValidation(schemaPath string) error {
	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		return err
	}
	r.Engine.Use(v.Middleware())
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaOrEmbedded(schemaPath))

	r.Engine.GET("/api/docs/openapi.yaml", func(c *gin.Context) {
		data := validator.Schema
		if schemaPath != "" {
			fileData, err := os.ReadFile(schemaPath)
			if err != nil {
				c.Error(err)
				return
			}
			data = fileData
		}
		c.Data(http.StatusOK, "application/yaml", data)
	})
	return nil
}

func schemaOrEmbedded(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
