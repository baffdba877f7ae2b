package handlers

import "github.com/gin-gonic/gin"

// respondError records err on the context for the access log and writes
// it as a JSON body
func respondError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
