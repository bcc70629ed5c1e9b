package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type TransferHandler struct {
	svs TransferServicer
}

func NewTransferHandler(svs TransferServicer) *TransferHandler {
	return &TransferHandler{
		svs: svs,
	}
}

// TransferParams тело запроса перевода. Отправитель берется только из токена. Сумма принимается числом или строкой.
type TransferParams struct {
	ReceiverID int64           `binding:"required,gt=0" json:"receiverId"`
	Amount     json.RawMessage `json:"amount"`
}

type TransferResponse struct {
	Status           string `json:"status"`
	LedgerID         int64  `json:"ledgerId"`
	SenderNewBalance string `json:"senderNewBalance"`
}

type TransferErrorResponse struct {
	Status  string           `json:"status"`
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// Create POST RouteGroup + TransfersRoute. Переводит сумму со счета текущего юзера на счет receiverId.
func (h *TransferHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params TransferParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	amount, amountErr := parseAmount(params.Amount)
	if amountErr != nil {
		abortWithTransferError(c, domain.NewTransferError(domain.KindInvalidAmount, "%s", amountErr.Error()))
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	result, err := h.svs.Transfer(reqCtx, currentUserID, params.ReceiverID, amount)
	if err != nil {
		var tErr *domain.TransferError
		if !errors.As(err, &tErr) {
			tErr = domain.NewTransferError(domain.KindInternal, "internal error")
		}
		if tErr.Internal() {
			_ = c.Error(err).SetType(gin.ErrorTypePrivate)
		}
		abortWithTransferError(c, tErr)
		return
	}

	c.JSON(http.StatusOK, TransferResponse{
		Status:           statusSuccess,
		LedgerID:         result.LedgerID,
		SenderNewBalance: result.SenderNewBalance.StringFixed(service.AmountScale),
	})
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, errors.New("amount is required")
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, errors.New("amount is malformed")
	}
	return amount, nil
}

// abortWithTransferError отвечает телом ошибки перевода. Для внутренних видов текст заменяется общим.
func abortWithTransferError(c *gin.Context, tErr *domain.TransferError) {
	status := transferErrorStatus(tErr.Kind)
	message := tErr.Message
	if tErr.Internal() {
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, TransferErrorResponse{
		Status:  statusError,
		Kind:    tErr.Kind,
		Message: message,
	})
}

func transferErrorStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidAmount, domain.KindSameAccount:
		return http.StatusUnprocessableEntity
	case domain.KindAccountNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
