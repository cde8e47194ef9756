package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Health(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"version":   version,
			"timestamp": time.Now(),
		})
	}
}
