package httpkit

import "github.com/gin-gonic/gin"

// DriverSubject returns the authenticated conversation driver, or "" when the
// request did not pass through DriverAuth.
func DriverSubject(c *gin.Context) string {
	value, ok := c.Get(ContextDriverKey)
	if !ok {
		return ""
	}
	subject, _ := value.(string)
	return subject
}
