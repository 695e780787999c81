package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/logger"
	cartsvc "storefront-cart/internal/service/cart"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ownerHeader = "X-Customer-ID"
	ownerKey    = "owner_id"
)

type cartHandler struct {
	svc CartService
}

type cartResponse struct {
	ID         int64             `json:"id"`
	State      string            `json:"state"`
	CreatedAt  time.Time         `json:"createdAt"`
	Items      []domain.CartItem `json:"items"`
	TotalPrice int64             `json:"totalPrice"`
	ItemCount  int               `json:"itemCount"`
}

func toCartResponse(cart domain.Cart) cartResponse {
	out := cartResponse{
		ID:        cart.ID,
		State:     cart.State,
		CreatedAt: cart.CreatedAt,
		Items:     cart.Items,
	}
	if out.Items == nil {
		out.Items = []domain.CartItem{}
	}
	for _, item := range out.Items {
		out.TotalPrice += item.LineTotal()
		out.ItemCount += item.Quantity
	}
	return out
}

// ownerMiddleware identifies the cart owner. Authentication happens upstream.
func ownerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(ownerHeader))
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ownerHeader + " header required"})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func (h *cartHandler) get(c *gin.Context) {
	cart, err := h.svc.Get(c.Request.Context(), c.GetString(ownerKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(*cart))
}

func (h *cartHandler) addItem(c *gin.Context) {
	var in cartsvc.AddItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	item, err := h.svc.AddItem(c.Request.Context(), c.GetString(ownerKey), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *cartHandler) updateItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	var in cartsvc.UpdateItemInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	item, err := h.svc.UpdateItem(c.Request.Context(), c.GetString(ownerKey), id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *cartHandler) removeItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveItem(c.Request.Context(), c.GetString(ownerKey), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func itemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("cart request failed", zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
