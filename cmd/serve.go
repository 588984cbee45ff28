package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-payments-router/app/controller"
	routergrpc "github.com/vibast-solutions/ms-go-payments-router/app/grpc"
	"github.com/vibast-solutions/ms-go-payments-router/app/types"
	"github.com/vibast-solutions/ms-go-payments-router/config"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) checkout, webhook and admin API together with the gRPC health service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, gatewayService, deps, cleanup := mustCreateGatewayService()
	defer cleanup()

	if _, err := gatewayService.MigrateAccounts(context.Background()); err != nil {
		logrus.WithError(err).Warn("Account settings migration failed")
	}

	checkoutController := controller.NewCheckoutController(gatewayService)
	orderController := controller.NewOrderController(gatewayService)
	adminController := controller.NewAdminController(gatewayService)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(checkoutController, orderController, adminController, echoInternalAuthMiddleware, cfg.App.ServiceName)

	healthServer := routergrpc.NewServer(cfg.App.ServiceName, map[string]routergrpc.Pinger{
		"mysql": routergrpc.PingerFunc(deps.db.PingContext),
		"store": deps.store,
	})
	grpcSrv, lis := setupGRPCServer(cfg, healthServer)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	checkoutController *controller.CheckoutController,
	orderController *controller.OrderController,
	adminController *controller.AdminController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", orderController.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Browsers and the gateway do not send request ids; one is generated.
	checkout := e.Group("/checkout", echomiddleware.RequestID())
	checkout.GET("/availability", checkoutController.Availability)
	checkout.POST("/orders/:id/pay", checkoutController.Pay)
	checkout.POST("/orders/:id/status", orderController.Status)
	checkout.POST("/orders/:id/popup-closed", orderController.PopupClosed)

	gateway := e.Group("/gateway/v1", echomiddleware.RequestID())
	gateway.POST("/data", orderController.Webhook)

	admin := e.Group("/admin", requireRequestID(), internalAuthMiddleware.RequireInternalAccess(appServiceName))
	admin.GET("/accounts", adminController.ListAccounts)
	admin.PUT("/accounts", adminController.SaveAccounts)
	admin.POST("/accounts/sync", adminController.SyncAccounts)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(cfg *config.Config, healthServer *routergrpc.Server) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			routergrpc.RecoveryInterceptor(),
			routergrpc.RequestIDInterceptor(),
			routergrpc.LoggingInterceptor(),
		),
	)
	healthpb.RegisterHealthServer(grpcSrv, healthServer)

	return grpcSrv, lis
}
