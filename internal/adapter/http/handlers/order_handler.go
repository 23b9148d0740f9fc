package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	request "restbucks/internal/adapter/http/dto/request"
	response "restbucks/internal/adapter/http/dto/response"
	"restbucks/internal/domain/entities"
	"restbucks/internal/domain/workflow"
	"restbucks/internal/usecase"
	"restbucks/pkg"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	APIBasePath          = "/v1"
	overloadedRetryAfter = "1"
)

var (
	errInvalidOrderPayload   = pkg.NewDomainErrorSimple("INVALID_ORDER_INPUT", "Invalid order payload", http.StatusBadRequest)
	errInvalidPaymentPayload = pkg.NewDomainErrorSimple("INVALID_PAYMENT_INPUT", "Invalid payment payload", http.StatusBadRequest)
	errInvalidFilter         = pkg.NewDomainErrorSimple("INVALID_FILTER", "Invalid order filter", http.StatusBadRequest)
)

// OrderHandler exposes the order lifecycle over HTTP.
type OrderHandler struct {
	usecase usecase.IOrderUseCase
}

func NewOrderHandler(uc usecase.IOrderUseCase) *OrderHandler {
	return &OrderHandler{usecase: uc}
}

// CreateOrder godoc
// @Summary      Place an order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order  body      request.CreateOrderRequest  true  "Order"
// @Success      201    {object}  response.OrderResponse
// @Failure      400    {object}  pkg.HTTPError
// @Failure      429    {object}  pkg.HTTPError
// @Failure      503    {object}  pkg.HTTPError
// @Router       /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var payload request.CreateOrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, errInvalidOrderPayload)
		return
	}

	order, err := h.usecase.Create(c.Request.Context(), payload.ToCommand())
	if err != nil {
		writeError(c, mapOrderError(err))
		return
	}

	c.Header("Location", baseURL(c)+"/orders/"+order.ID)
	c.JSON(http.StatusCreated, response.FromOrder(order, baseURL(c)))
}

// ListOrders godoc
// @Summary      List orders
// @Tags         orders
// @Produce      json
// @Param        status  query     string  false  "pending, preparing, ready or delivered"
// @Param        paid    query     bool    false  "paid flag"
// @Success      200     {array}   response.OrderResponse
// @Failure      400     {object}  pkg.HTTPError
// @Router       /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var filter entities.OrderFilter
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		status := entities.OrderStatus(strings.ToLower(v))
		filter.Status = &status
	}
	if v := strings.TrimSpace(c.Query("paid")); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, errInvalidFilter)
			return
		}
		filter.Paid = &paid
	}

	orders, err := h.usecase.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, mapOrderError(err))
		return
	}
	c.JSON(http.StatusOK, response.FromOrders(orders, baseURL(c)))
}

// GetOrder godoc
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.OrderResponse
// @Failure      404  {object}  pkg.HTTPError
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.usecase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, mapOrderError(err))
		return
	}
	c.JSON(http.StatusOK, response.FromOrder(order, baseURL(c)))
}

// UpdateOrder godoc
// @Summary      Change an unpaid pending order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id     path      string                      true  "Order ID"
// @Param        order  body      request.UpdateOrderRequest  true  "Fields to change"
// @Success      200    {object}  response.OrderResponse
// @Failure      409    {object}  pkg.HTTPError
// @Router       /orders/{id} [put]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	var payload request.UpdateOrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, errInvalidOrderPayload)
		return
	}

	order, err := h.usecase.Edit(c.Request.Context(), c.Param("id"), payload.ToPatch())
	if err != nil {
		writeError(c, mapOrderError(err))
		return
	}
	c.JSON(http.StatusOK, response.FromOrder(order, baseURL(c)))
}

// PayOrder godoc
// @Summary      Pay for an order
// @Description  Charges the order cost through the payment service. Paying twice is harmless.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Order ID"
// @Param        payment  body      request.PaymentRequest  true  "Payment"
// @Success      201      {object}  response.OrderResponse
// @Success      200      {object}  response.OrderResponse  "already paid"
// @Failure      400      {object}  pkg.HTTPError
// @Failure      402      {object}  pkg.HTTPError
// @Failure      503      {object}  pkg.HTTPError
// @Router       /orders/{id}/payment [put]
func (h *OrderHandler) PayOrder(c *gin.Context) {
	var payload request.PaymentRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, errInvalidPaymentPayload)
		return
	}

	res, err := h.usecase.Pay(c.Request.Context(), c.Param("id"), payload.ToCommand())
	if err != nil {
		writeError(c, mapOrderError(err))
		return
	}

	status := http.StatusCreated
	if res.AlreadyPaid {
		status = http.StatusOK
	}
	c.JSON(status, response.FromOrder(res.Order, baseURL(c)))
}

// AdvanceStatus godoc
// @Summary      Move an order to its next status
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id      path      string                 true   "Order ID"
// @Param        status  query     string                 false  "target status"
// @Param        body    body      request.StatusRequest  false  "target status"
// @Success      200     {object}  response.OrderResponse
// @Failure      400     {object}  pkg.HTTPError
// @Failure      409     {object}  pkg.HTTPError
// @Router       /orders/{id}/status [put]
func (h *OrderHandler) AdvanceStatus(c *gin.Context) {
	var payload request.StatusRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			writeError(c, errInvalidOrderPayload)
			return
		}
	}
	target, err := payload.ResolveStatus(c.Query("status"))
	if err != nil {
		writeError(c, pkg.NewDomainErrorSimple("INVALID_STATUS", "Status is required", http.StatusBadRequest))
		return
	}

	order, err := h.usecase.AdvanceStatus(c.Request.Context(), c.Param("id"), target)
	if err != nil {
		writeError(c, mapOrderError(err))
		return
	}
	c.JSON(http.StatusOK, response.FromOrder(order, baseURL(c)))
}

// CancelOrder godoc
// @Summary      Cancel an unpaid pending order
// @Tags         orders
// @Produce      json
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.CancelResponse
// @Failure      404  {object}  pkg.HTTPError
// @Failure      409  {object}  pkg.HTTPError
// @Router       /orders/{id} [delete]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	if err := h.usecase.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, mapOrderError(err))
		return
	}
	c.JSON(http.StatusOK, response.FromCancel(baseURL(c)))
}

func writeError(c *gin.Context, appErr *pkg.AppError) {
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(appErr).Msg("[order][handler] request failed")
	}
	if appErr.HTTPStatus == http.StatusServiceUnavailable && appErr.Code == "PAYMENT_OVERLOADED" {
		c.Header("Retry-After", overloadedRetryAfter)
	}
	c.JSON(appErr.HTTPStatus, appErr.ToHTTPError())
}

func mapOrderError(err error) *pkg.AppError {
	var funds *workflow.InsufficientFundsError
	switch {
	case errors.Is(err, usecase.ErrOrderNotFound):
		return pkg.NewDomainErrorSimple("ORDER_NOT_FOUND", "Order not found", http.StatusNotFound)
	case errors.Is(err, usecase.ErrInvalidOrderID):
		return pkg.NewDomainErrorSimple("INVALID_REQUEST", "Invalid order id", http.StatusBadRequest)
	case errors.Is(err, workflow.ErrInvalidOrder):
		return pkg.NewDomainError("INVALID_ORDER", err.Error(), err, http.StatusBadRequest)
	case errors.Is(err, workflow.ErrInvalidStatus):
		return pkg.NewDomainError("INVALID_STATUS", err.Error(), err, http.StatusBadRequest)
	case errors.Is(err, workflow.ErrInvalidCard):
		return pkg.NewDomainErrorSimple("INVALID_CARD", "Invalid card number", http.StatusBadRequest)
	case errors.As(err, &funds):
		return pkg.NewDomainError("INSUFFICIENT_AMOUNT", funds.Error(), err, http.StatusBadRequest)
	case errors.Is(err, workflow.ErrConflict):
		return pkg.NewDomainError("ORDER_CONFLICT", err.Error(), err, http.StatusConflict)
	case errors.Is(err, usecase.ErrConcurrentModification):
		return pkg.NewDomainError("CONCURRENT_MODIFICATION", "Order was modified concurrently, retry", err, http.StatusConflict)
	case errors.Is(err, usecase.ErrPaymentOverloaded):
		return pkg.NewDomainError("PAYMENT_OVERLOADED", "Payment service busy, retry shortly", err, http.StatusServiceUnavailable)
	case errors.Is(err, usecase.ErrPaymentRejected):
		return pkg.NewDomainError("PAYMENT_REJECTED", "Payment was declined", err, http.StatusPaymentRequired)
	case errors.Is(err, usecase.ErrPaymentUnavailable), errors.Is(err, workflow.ErrChargerMissing):
		return pkg.NewDomainError("PAYMENT_UNAVAILABLE", "Payment service unavailable", err, http.StatusServiceUnavailable)
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return pkg.NewDomainError("SERVICE_UNAVAILABLE", "Order store unavailable", err, http.StatusServiceUnavailable)
	default:
		return pkg.NewDomainError("INTERNAL_ERROR", "An internal error occurred", err, http.StatusInternalServerError)
	}
}

// baseURL is the externally visible API root for hypermedia links.
func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host + APIBasePath
}
