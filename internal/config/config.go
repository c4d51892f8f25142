package config

import (
	"crypto/rsa"
	"encoding/base64"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/brickfolio/investment-service/internal/utils"
)

// Config holds everything the service reads from the environment. Missing
// required values are fatal at startup; the service never limps along
// half-configured.
type Config struct {
	AppName            string
	AppPort            string
	AppUrl             string
	DBUrl              string
	StripeSecretKey    string
	SendgridAPIKey     string
	SendgridFromEmail  string
	SendgridSandbox    bool
	RSAPublicKey       *rsa.PublicKey
	UseFakePaymentRail bool
	MigrationsDir      string
}

const AppName = "investment-service"

func LoadConfig() *Config {
	appPort := os.Getenv("APP_PORT")
	if appPort == "" {
		utils.Logger.Fatal("APP_PORT env var is missing")
	}
	appUrl := os.Getenv("APP_URL")
	if appUrl == "" {
		utils.Logger.Fatal("APP_URL env var is missing")
	}
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		utils.Logger.Fatal("DB_URL env var is missing")
	}

	pubB64 := os.Getenv("RSA_PUBLIC_KEY_BASE64")
	if pubB64 == "" {
		utils.Logger.Fatal("RSA_PUBLIC_KEY_BASE64 env var is missing")
	}
	pubPEM, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		utils.Logger.WithError(err).Fatal("RSA_PUBLIC_KEY_BASE64 is not valid base64")
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}

	useFakeRail := os.Getenv("USE_FAKE_PAYMENT_RAIL") == "true"

	stripeSecretKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeSecretKey == "" && !useFakeRail {
		utils.Logger.Fatal("STRIPE_SECRET_KEY env var is missing")
	}

	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	sendgridFrom := os.Getenv("SENDGRID_FROM_EMAIL")
	if sendgridFrom == "" {
		sendgridFrom = "no-reply@brickfolio.io"
	}

	migrationsDir := os.Getenv("MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "./migrations"
	}

	return &Config{
		AppName:            AppName,
		AppPort:            appPort,
		AppUrl:             appUrl,
		DBUrl:              dbURL,
		StripeSecretKey:    stripeSecretKey,
		SendgridAPIKey:     sendgridAPIKey,
		SendgridFromEmail:  sendgridFrom,
		SendgridSandbox:    os.Getenv("SENDGRID_SANDBOX_MODE") == "true",
		RSAPublicKey:       pubKey,
		UseFakePaymentRail: useFakeRail,
		MigrationsDir:      migrationsDir,
	}
}
