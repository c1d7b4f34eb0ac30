package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"hospitalrecords/internal/middleware"
)

func getAccountAndRole(c *gin.Context) (accountID int64, role string) {
	return c.GetInt64(middleware.CtxAccountID), c.GetString(middleware.CtxRole)
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
