package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/factory"
	"github.com/vibast-solutions/ms-go-payments-router/app/service"
	"github.com/vibast-solutions/ms-go-payments-router/app/types"
)

// OrderController serves the gateway webhook and the browser status signals.
type OrderController struct {
	gatewayService *service.GatewayService
	logger         logrus.FieldLogger
}

func NewOrderController(gatewayService *service.GatewayService) *OrderController {
	return &OrderController{
		gatewayService: gatewayService,
		logger:         factory.NewModuleLogger("order-controller"),
	}
}

func (c *OrderController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *OrderController) Webhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.gatewayService.HandleWebhook(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidToken):
			return writeError(ctx, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrInvalidRequest):
			return writeError(ctx, http.StatusNotFound, "Order not found")
		case errors.Is(err, service.ErrPayIDMismatch):
			return writeError(ctx, http.StatusBadRequest, "Pay ID mismatch")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("order_id", req.GetOrderID()).Error("Webhook handling failed")
			return writeError(ctx, http.StatusInternalServerError, "Failed to update order status")
		}
	}

	return ctx.JSON(http.StatusOK, &types.WebhookResponse{
		Success:          true,
		Message:          result.Message,
		PaymentReturnURL: result.PaymentReturnURL,
	})
}

func (c *OrderController) Status(ctx echo.Context) error {
	req, err := types.NewOrderSignalRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.gatewayService.CheckPaymentStatus(ctx.Request().Context(), req)
	if err != nil {
		return c.writeSignalError(ctx, err, req.GetOrderID())
	}
	return ctx.JSON(http.StatusOK, &types.StatusResponse{Status: result.Status, RedirectURL: result.RedirectURL})
}

func (c *OrderController) PopupClosed(ctx echo.Context) error {
	req, err := types.NewOrderSignalRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.gatewayService.HandlePopupClosed(ctx.Request().Context(), req)
	if err != nil {
		return c.writeSignalError(ctx, err, req.GetOrderID())
	}
	return ctx.JSON(http.StatusOK, &types.PopupResponse{
		Success:     true,
		Message:     result.Message,
		OrderID:     result.OrderID,
		RedirectURL: result.RedirectURL,
	})
}

func (c *OrderController) writeSignalError(ctx echo.Context, err error, orderID uint64) error {
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		return writeError(ctx, http.StatusForbidden, "Security check failed. Please refresh the page and try again.")
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrInvalidRequest):
		return writeError(ctx, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrPaymentTransport):
		return writeError(ctx, http.StatusBadGateway, "Failed to connect to the payment gateway.")
	case errors.Is(err, service.ErrNoAccountsAvailable):
		return writeError(ctx, http.StatusConflict, "Payment gateway not found.")
	case errors.Is(err, service.ErrUnknownTxnStatus):
		return writeError(ctx, http.StatusUnprocessableEntity, "Unknown transaction status received.")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("order_id", orderID).Error("Order signal failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
