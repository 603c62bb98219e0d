package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/printloom/fulfillment/internal/awsapi"
	"github.com/printloom/fulfillment/internal/config"
	"github.com/printloom/fulfillment/internal/logging"
	"github.com/printloom/fulfillment/internal/orders"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.Server.Env); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logging.Sync()

	clients, err := awsapi.NewClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	store := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.LineItems, cfg.Tables.PaymentRefs)
	processor := NewProcessor(store, logging.L())

	// RUN_LOCAL processes a single simulated result for development.
	if cfg.Server.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":"local-order-1","line_item_id":"local-item-1","status":"rendered","asset_location":"s3://local-bucket/renders/local-item-1.pdf"}`
		}
		ev := events.SQSEvent{
			Records: []events.SQSMessage{{Body: body}},
		}
		if err := processor.Handle(context.Background(), ev); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(processor.Handle)
}
