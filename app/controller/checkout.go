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

type CheckoutController struct {
	gatewayService *service.GatewayService
	logger         logrus.FieldLogger
}

func NewCheckoutController(gatewayService *service.GatewayService) *CheckoutController {
	return &CheckoutController{
		gatewayService: gatewayService,
		logger:         factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Pay(ctx echo.Context) error {
	req, err := types.NewCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeFail(ctx, http.StatusBadRequest, "invalid request body", nil)
	}
	if err := req.Validate(); err != nil {
		return c.writeFail(ctx, http.StatusBadRequest, err.Error(), nil)
	}

	outcome, err := c.gatewayService.ProcessPayment(ctx.Request().Context(), req)
	if err != nil {
		var validation *service.ValidationError
		var declined *service.DeclinedError
		switch {
		case errors.As(err, &validation):
			return c.writeFail(ctx, http.StatusBadRequest, "invalid checkout data", validation.Messages)
		case errors.Is(err, service.ErrRateLimited):
			return c.writeFail(ctx, http.StatusTooManyRequests, "Too many requests. Please try again later.", nil)
		case errors.Is(err, service.ErrOrderNotFound):
			return c.writeFail(ctx, http.StatusNotFound, "order not found", nil)
		case errors.Is(err, service.ErrInvalidStatus), errors.Is(err, service.ErrInvalidRequest):
			return c.writeFail(ctx, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, service.ErrNoAccountsAvailable):
			return c.writeFail(ctx, http.StatusServiceUnavailable, "No available payment accounts.", nil)
		case errors.As(err, &declined):
			return c.writeFail(ctx, http.StatusPaymentRequired, declined.Message, nil)
		case errors.Is(err, service.ErrPaymentTransport):
			return c.writeFail(ctx, http.StatusBadGateway, "Payment failed. Please try again.", nil)
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Process payment failed")
			return c.writeFail(ctx, http.StatusInternalServerError, "internal server error", nil)
		}
	}

	return ctx.JSON(http.StatusOK, &types.CheckoutResponse{
		Result:        "success",
		PaymentLink:   outcome.PaymentLink,
		SecurityToken: outcome.SecurityToken,
	})
}

func (c *CheckoutController) Availability(ctx echo.Context) error {
	req, err := types.NewAvailabilityRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	available, err := c.gatewayService.Availability(ctx.Request().Context(), req.GetAmountCents())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Availability check failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &types.AvailabilityResponse{Available: available})
}

func (c *CheckoutController) writeFail(ctx echo.Context, statusCode int, message string, messages []string) error {
	return ctx.JSON(statusCode, &types.CheckoutResponse{Result: "fail", Error: message, Messages: messages})
}

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
