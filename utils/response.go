package utils

import "github.com/gin-gonic/gin"

// JSONSuccess writes the standard success envelope. A nil data omits the
// data field.
func JSONSuccess(c *gin.Context, code int, data interface{}) {
	if data == nil {
		c.JSON(code, gin.H{"status": "success"})
		return
	}
	c.JSON(code, gin.H{"status": "success", "data": data})
}

// JSONError writes the standard error envelope with a machine-readable code.
func JSONError(c *gin.Context, code int, errCode, message string) {
	c.JSON(code, gin.H{"error": gin.H{"code": errCode, "message": message}})
}
