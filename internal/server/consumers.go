package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListInventory(c *gin.Context) {
	records, err := s.inventorySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	outOfStock := 0
	for _, r := range records {
		if r.Stock == 0 {
			outOfStock++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"inventory":       records,
		"count":           len(records),
		"outOfStockCount": outOfStock,
	})
}

func (s *Server) GetInventory(c *gin.Context) {
	record, err := s.inventorySvc.Get(c.Request.Context(), c.Param("productId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) ListBilling(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.billingSvc.List(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var total int64
	for _, r := range records {
		total += r.Total
	}

	c.JSON(http.StatusOK, gin.H{
		"billingRecords": records,
		"count":          len(records),
		"totalAmount":    total,
	})
}

func (s *Server) GetOrderBilling(c *gin.Context) {
	record, err := s.billingSvc.GetByOrderID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) ListNotifications(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.notificationSvc.List(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": records,
		"count":         len(records),
	})
}

func (s *Server) GetOrderNotification(c *gin.Context) {
	record, err := s.notificationSvc.GetByOrderID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
