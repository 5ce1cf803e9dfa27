package core

import "github.com/gin-gonic/gin"

// respondError sends the unified error payload {"error": {"code", "message"}}.
// Auth failures never go through here; they classify into redirects instead.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
