package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/orderflow/internal/order/domain"
)

const maxOrderBodyBytes = 1 << 20

type createOrderResponse struct {
	Message     string    `json:"message"`
	OrderID     string    `json:"orderId"`
	Status      string    `json:"status"`
	TotalAmount int64     `json:"totalAmount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxOrderBodyBytes))
	if err != nil {
		AbortWithError(c, newValidationError("body", "Request body could not be read"))
		return
	}

	req, err := orderdomain.DecodeCreateOrderRequest(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !s.allowIntake(c, req.CustomerID) {
		return
	}

	order, err := s.orderSvc.Create(c.Request.Context(), req)
	if order.ID != 0 {
		c.Set("order_id", order.ID.String())
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createOrderResponse{
		Message:     "Order created successfully",
		OrderID:     order.ID.String(),
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	})
}

func (s *Server) GetOrder(c *gin.Context) {
	order, err := s.orderSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) ListOrders(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orders, err := s.orderSvc.List(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}
