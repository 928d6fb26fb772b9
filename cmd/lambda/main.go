package main

import (
	"os"

	"eurofx-service/internal/adapter/lambda"
	"eurofx-service/internal/app"
	"eurofx-service/internal/config"
	"eurofx-service/internal/metrics"
	"eurofx-service/pkg/logger"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
)

// The cache lives as long as the execution environment, so only warm
// invocations benefit from it.
func main() {
	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	rates, err := app.New(cfg, metrics.NewMetrics(prometheus.NewRegistry()), log)
	if err != nil {
		log.Error("Failed to build rate service", "error", err)
		os.Exit(1)
	}

	awslambda.Start(lambda.NewHandler(rates.Service, log).Handle)
}
