package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/example/pharma-exchange/internal/config"
	"github.com/example/pharma-exchange/internal/infrastructure/kafka"
	"github.com/example/pharma-exchange/internal/infrastructure/store"
	"github.com/example/pharma-exchange/internal/journal"
	"github.com/example/pharma-exchange/pkg/logger"
)

func main() {
	log := logger.Must(logger.New())
	defer log.Sync()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal("failed to load aws configuration", zap.Error(err))
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	movementJournal := store.NewDynamoJournal(dynamoClient, cfg.Journal.TableName)
	handler := journal.NewHandler(movementJournal, logger.Named(log, "journal"))

	consumer := kafka.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.Topic,
		cfg.Kafka.ConsumerGroup,
		logger.Named(log, "consumer"),
	)
	defer consumer.Close()

	go func() {
		log.Info("journal consumer started",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
			zap.String("group", cfg.Kafka.ConsumerGroup),
			zap.String("table", cfg.Journal.TableName))
		if err := consumer.Consume(ctx, handler.HandleMessage); err != nil {
			if ctx.Err() == nil {
				log.Error("consumer error", zap.Error(err))
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
}
