package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/service"
	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	svs HistoryServicer
}

func NewHistoryHandler(svs HistoryServicer) *HistoryHandler {
	return &HistoryHandler{
		svs: svs,
	}
}

type HistoryItemResponse struct {
	ID         int64                `json:"id"`
	SenderID   int64                `json:"senderId"`
	ReceiverID int64                `json:"receiverId"`
	Amount     string               `json:"amount"`
	CreatedAt  time.Time            `json:"createdAt"`
	Direction  domain.DirectionType `json:"type"`
}

// Index GET RouteGroup + TransfersRoute. История переводов текущего юзера, новые первыми.
func (h *HistoryHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	items, err := h.svs.History(reqCtx, currentUserID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}
	if len(items) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	var response = make([]HistoryItemResponse, len(items))
	for i, item := range items {
		response[i] = HistoryItemResponse{
			ID:         item.ID,
			SenderID:   item.SenderID,
			ReceiverID: item.ReceiverID,
			Amount:     item.Amount.StringFixed(service.AmountScale),
			CreatedAt:  item.CreatedAt,
			Direction:  item.Direction,
		}
	}
	c.JSON(http.StatusOK, response)
}

type DashboardResponse struct {
	Username      string `json:"username"`
	Balance       string `json:"balance"`
	TotalSent     string `json:"totalSent"`
	TotalReceived string `json:"totalReceived"`
	TxCount       int64  `json:"txCount"`
}

// Dashboard GET RouteGroup + DashboardRoute. Баланс и агрегаты журнала текущего юзера.
func (h *HistoryHandler) Dashboard(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	stats, err := h.svs.Dashboard(reqCtx, currentUserID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			_ = c.AbortWithError(http.StatusNotFound, errors.New("account not found")).SetType(gin.ErrorTypePublic)
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, DashboardResponse{
		Username:      stats.Username,
		Balance:       stats.Balance.StringFixed(service.AmountScale),
		TotalSent:     stats.TotalSent.StringFixed(service.AmountScale),
		TotalReceived: stats.TotalReceived.StringFixed(service.AmountScale),
		TxCount:       stats.TxCount,
	})
}
