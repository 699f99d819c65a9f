package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"notafiscal/internal/invoices/events"
	"notafiscal/internal/invoices/service"
	"notafiscal/internal/invoices/validator"
	"notafiscal/pkg/config"
	"notafiscal/pkg/kafka"
	kafkaconfig "notafiscal/pkg/kafka/config"
	kafkamiddleware "notafiscal/pkg/kafka/middleware"
)

const ServiceName = "sanitizer-worker"

func main() {
	config.LoadDotEnv()
	log := config.LoadLogger(ServiceName)

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(log)

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.Topics.Sanitized, kafkaCfg.Topics.DLQ, log)
	if err != nil {
		log.Fatal("Failed to create Kafka producer", "error", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error("Failed to close Kafka producer", "error", err)
		}
	}()

	metrics := kafkamiddleware.NewMetrics()
	producer.Use(kafkamiddleware.LoggingProducerMiddleware(log))
	producer.Use(metrics.ProducerMiddleware())

	// The worker only sanitizes, so it runs the service without storage or provider.
	sanitizer := service.NewInvoiceService(nil, nil, nil, nil, validator.NewInvoiceValidator(), &config.Config{Log: log})
	worker := events.NewSanitizeWorker(sanitizer, producer, ServiceName, log)

	consumer, err := kafka.NewConsumer(kafkaCfg,
		kafkaCfg.Topics.RawExtractions,
		kafkaCfg.ConsumerGroup,
		kafkaCfg.Topics.DLQ,
		worker.Handle,
		log,
	)
	if err != nil {
		log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafkamiddleware.LoggingConsumerMiddleware(log))
	consumer.Use(metrics.ConsumerMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting sanitizer worker",
		"topic", kafkaCfg.Topics.RawExtractions,
		"output_topic", kafkaCfg.Topics.Sanitized,
		"group", kafkaCfg.ConsumerGroup,
	)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Consumer stopped with error", "error", err)
	}

	if err := consumer.Close(); err != nil {
		log.Error("Failed to close Kafka consumer", "error", err)
	}
	metrics.Log(log)
	log.Info("Sanitizer worker stopped")
}
