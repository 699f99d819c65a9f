package main

import (
	"context"

	"notafiscal/internal/invoices/events"
	"notafiscal/internal/invoices/handler"
	"notafiscal/internal/invoices/repository"
	"notafiscal/internal/invoices/service"
	"notafiscal/internal/invoices/validator"
	"notafiscal/pkg/app"
	"notafiscal/pkg/config"
	"notafiscal/pkg/extraction"
	"notafiscal/pkg/kafka"
	kafkaconfig "notafiscal/pkg/kafka/config"
	kafkamiddleware "notafiscal/pkg/kafka/middleware"
	"notafiscal/pkg/metrics"
)

const ServiceName = "invoices"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	serverApp := app.NewApplication()
	collector := metrics.New("notafiscal")
	serverApp.UseMetrics(collector)

	publisher := initPublisher(cfg, serverApp)
	invoiceService := initServices(cfg, publisher, collector)

	cfg.Log.Info("Starting Invoices service")
	serverApp.SetApp(cfg,
		handler.NewInvoiceHandler(invoiceService, cfg),
		handler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
	)
	serverApp.OnShutdown("mongo", func(context.Context) error {
		cfg.GracefulShutdown()
		return nil
	})
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher service.Publisher, recorder service.Recorder) service.InvoiceService {
	var provider extraction.Provider
	if client, err := extraction.NewClient(cfg.Extraction, cfg.Log); err != nil {
		cfg.Log.Warn("Extraction provider disabled", "error", err)
	} else {
		provider = client
	}

	invoiceService := service.NewInvoiceService(
		repository.NewMongoInvoiceRepository(cfg),
		provider,
		publisher,
		recorder,
		validator.NewInvoiceValidator(),
		cfg,
	)

	cfg.Log.Info("Invoice service initialized", "database", cfg.MongoDatabaseName)
	return invoiceService
}

// initPublisher returns nil when Kafka is disabled so the service runs without a broker.
func initPublisher(cfg *config.Config, serverApp *app.Application) service.Publisher {
	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	if !kafkaCfg.Enabled {
		cfg.Log.Info("Kafka disabled, extraction events will not be published")
		return nil
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.Topics.Extracted, kafkaCfg.Topics.DLQ, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	kafkaMetrics := kafkamiddleware.NewMetrics()
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafkaMetrics.ProducerMiddleware())

	serverApp.OnShutdown("kafka-producer", func(context.Context) error {
		kafkaMetrics.Log(cfg.Log)
		return producer.Close()
	})
	return events.NewExtractedPublisher(producer, ServiceName)
}
