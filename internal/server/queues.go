package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	queuedomain "github.com/smallbiznis/orderflow/internal/queue/domain"
	"github.com/smallbiznis/orderflow/pkg/db/pagination"
)

func (s *Server) ListDeadLetters(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Queue string `form:"queue"`
	}
	if err := c.ShouldBindQuery(&query); err != nil || query.Limit < 0 {
		AbortWithError(c, newValidationError("limit", "limit must be a non-negative integer"))
		return
	}
	query.Limit = pagination.ClampLimit(query.Limit)

	before, beforeID, err := parseDeadLetterCursor(query.PageToken)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	letters, err := s.queueSvc.ListDeadLetters(c.Request.Context(), queuedomain.DeadLetterFilter{
		Queue:    strings.TrimSpace(query.Queue),
		Before:   before,
		BeforeID: beforeID,
		Limit:    query.Limit + 1,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	page, info := pagination.BuildCursorPageInfo(letters, query.Limit, func(dl queuedomain.DeadLetter) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        dl.ID.String(),
			CreatedAt: dl.DeadLetteredAt.UTC().Format(time.RFC3339Nano),
		})
		return token
	})

	c.JSON(http.StatusOK, gin.H{
		"deadLetters": page,
		"count":       len(page),
		"pageInfo":    info,
	})
}

func (s *Server) GetQueueStats(c *gin.Context) {
	stats, err := s.queueSvc.Stats(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
