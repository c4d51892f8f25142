package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	_ "time/tzdata"

	"github.com/brickfolio/investment-service/internal/app"
	"github.com/brickfolio/investment-service/internal/config"
	"github.com/brickfolio/investment-service/internal/constants"
	"github.com/brickfolio/investment-service/internal/controllers"
	"github.com/brickfolio/investment-service/internal/middleware"
	"github.com/brickfolio/investment-service/internal/notifications"
	"github.com/brickfolio/investment-service/internal/payments"
	"github.com/brickfolio/investment-service/internal/repositories"
	"github.com/brickfolio/investment-service/internal/routes"
	"github.com/brickfolio/investment-service/internal/services"
	"github.com/brickfolio/investment-service/internal/utils"
)

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize investment-service:", err)
	}
	defer application.Close()

	// Repositories
	propRepo := repositories.NewPropertyRepository(application.DB)
	shareRepo := repositories.NewShareRepository(application.DB)
	txnRepo := repositories.NewTransactionRepository(application.DB)
	rentalRepo := repositories.NewRentalRecordRepository(application.DB)
	balanceRepo := repositories.NewBalanceRepository(application.DB)
	auditRepo := repositories.NewAuditLogRepository(application.DB)

	// External adapters
	var rail payments.PaymentRail
	if cfg.UseFakePaymentRail {
		utils.Logger.Warn("USE_FAKE_PAYMENT_RAIL is set; no real money will move")
		rail = payments.NewFakeRail()
	} else {
		rail = payments.NewStripeRail(cfg.StripeSecretKey, constants.DefaultCurrency)
	}

	var notifier notifications.Notifier
	if cfg.SendgridAPIKey != "" {
		notifier = notifications.NewSendGridNotifier(cfg.SendgridAPIKey, "Brickfolio", cfg.SendgridFromEmail, cfg.SendgridSandbox)
	} else {
		utils.Logger.Warn("SENDGRID_API_KEY not set; notifications will only be logged")
		notifier = notifications.NewLogNotifier()
	}

	// Services
	auditWriter := services.NewAuditWriter(auditRepo)
	feeCalc := services.NewFeeCalculator()
	investmentService := services.NewInvestmentService(
		propRepo, shareRepo, txnRepo, balanceRepo, auditWriter, feeCalc, rail, notifier,
	)
	withdrawalService := services.NewWithdrawalService(
		txnRepo, balanceRepo, rentalRepo, auditWriter, rail, notifier,
	)
	distributionService := services.NewDistributionService(
		rentalRepo, shareRepo, txnRepo, balanceRepo, propRepo, auditWriter, notifier,
	)
	portfolioService := services.NewPortfolioService(shareRepo, txnRepo, balanceRepo)
	propertyService := services.NewPropertyService(
		propRepo, rentalRepo, txnRepo, balanceRepo, auditWriter, rail,
	)

	// Controllers
	healthController := controllers.NewHealthController(application)
	investmentController := controllers.NewInvestmentController(
		investmentService, withdrawalService, portfolioService, propertyService,
	)
	propertyController := controllers.NewPropertyController(propertyService, distributionService)

	// Router setup
	router := mux.NewRouter()

	// Public routes
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)

	// Secured routes for investors
	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))
	secured.HandleFunc(routes.Properties, propertyController.ListPropertiesHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Property, propertyController.GetPropertyHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Investments, investmentController.InvestHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Withdrawals, investmentController.WithdrawHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Deposits, investmentController.DepositHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Portfolio, investmentController.PortfolioHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Transactions, investmentController.TransactionHistoryHandler).Methods(http.MethodGet)

	// Admin routes: property lifecycle, rental intake, distribution
	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.AdminAuthMiddleware(cfg.RSAPublicKey))
	admin.HandleFunc(routes.Properties, propertyController.CreatePropertyHandler).Methods(http.MethodPost)
	admin.HandleFunc(routes.PropertyStatus, propertyController.UpdatePropertyStatusHandler).Methods(http.MethodPatch)
	admin.HandleFunc(routes.RentalRecords, propertyController.RecordRentalIncomeHandler).Methods(http.MethodPost)
	admin.HandleFunc(routes.Distributions, propertyController.DistributeHandler).Methods(http.MethodPost)

	// Cron job setup
	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(constants.ReconciliationCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.ReconciliationTimeout)
		defer cancel()
		utils.Logger.Info("Starting reconciliation sweep...")
		if err := withdrawalService.RunReconciliationSweep(ctx); err != nil {
			utils.Logger.WithError(err).Error("Reconciliation sweep failed")
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule reconciliation sweep cron")
	}
	c.Start()
	utils.Logger.Info("Scheduled reconciliation sweep")

	co := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AppUrl},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("investment-service failed to start:", err)
	}
}
