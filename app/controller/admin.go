package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/factory"
	"github.com/vibast-solutions/ms-go-payments-router/app/mapper"
	"github.com/vibast-solutions/ms-go-payments-router/app/service"
	"github.com/vibast-solutions/ms-go-payments-router/app/types"
)

// AdminController manages the account pool. Routes are internal-auth gated.
type AdminController struct {
	gatewayService *service.GatewayService
	logger         logrus.FieldLogger
}

func NewAdminController(gatewayService *service.GatewayService) *AdminController {
	return &AdminController{
		gatewayService: gatewayService,
		logger:         factory.NewModuleLogger("admin-controller"),
	}
}

func (c *AdminController) ListAccounts(ctx echo.Context) error {
	accounts, err := c.gatewayService.ListAccounts(ctx.Request().Context())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List accounts failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &types.ListAccountsResponse{Accounts: mapper.AccountsToView(accounts)})
}

func (c *AdminController) SaveAccounts(ctx echo.Context) error {
	req, err := types.NewSaveAccountsRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	accounts, err := c.gatewayService.SaveAccounts(ctx.Request().Context(), req)
	if err != nil {
		var validation *service.ValidationError
		if errors.As(err, &validation) {
			return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "invalid accounts", Messages: validation.Messages})
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Save accounts failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
	return ctx.JSON(http.StatusOK, &types.ListAccountsResponse{Accounts: mapper.AccountsToView(accounts)})
}

func (c *AdminController) SyncAccounts(ctx echo.Context) error {
	summary, err := c.gatewayService.SyncAccounts(ctx.Request().Context())
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Manual account sync failed")
		if errors.Is(err, service.ErrPaymentTransport) {
			return writeError(ctx, http.StatusBadGateway, "Sync failed: "+service.ErrPaymentTransport.Error())
		}
		return writeError(ctx, http.StatusInternalServerError, "Sync failed: internal server error")
	}
	return ctx.JSON(http.StatusOK, mapper.SyncSummaryToResponse(summary))
}
