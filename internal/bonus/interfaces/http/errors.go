package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/jipatebonus/internal/bonus/domain"
	"github.com/wyfcoding/jipatebonus/pkg/logger"
)

var kindStatus = map[domain.Kind]int{
	domain.KindAlreadyExists:   http.StatusConflict,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindUnauthorized:    http.StatusUnauthorized,
	domain.KindForbidden:       http.StatusForbidden,
	domain.KindInvalidArgument: http.StatusBadRequest,
	domain.KindInvalidRange:    http.StatusBadRequest,
	domain.KindInvalidState:    http.StatusConflict,
	domain.KindInsufficient:    http.StatusUnprocessableEntity,
}

// writeError 业务错误按类别映射状态码，其余视为内部错误
func writeError(c *gin.Context, err error) {
	var derr *domain.Error
	if errors.As(err, &derr) {
		status, ok := kindStatus[derr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorBody(derr))
		return
	}

	logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
		"code":  "INTERNAL",
	})
}

func errorBody(e *domain.Error) gin.H {
	body := gin.H{
		"error": e.Message,
		"code":  string(e.Kind),
	}
	if e.Reason != "" {
		body["reason"] = e.Reason
	}
	return body
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, domain.Errorf(domain.KindInvalidArgument, "", "%s", msg))
}
