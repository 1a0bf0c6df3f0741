package seqalloc

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the allocator's HTTP surface on a gin router so a
// node can serve as the sequence allocator for its peers.
func RegisterRoutes(router gin.IRouter, store *Store) {
	router.POST("/v1/seq/reserve", func(c *gin.Context) {
		var req reserveRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		value, err := store.Reserve(c.Request.Context(), req.Key, req.Fallback)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reserve failed"})
			return
		}
		c.JSON(http.StatusOK, reserveResponse{Value: value})
	})

	router.POST("/v1/seq/reset", func(c *gin.Context) {
		var req resetRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		if err := store.Reset(c.Request.Context(), req.Key, req.Value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
