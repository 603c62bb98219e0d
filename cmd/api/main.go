package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/printloom/fulfillment/internal/assets"
	"github.com/printloom/fulfillment/internal/awsapi"
	"github.com/printloom/fulfillment/internal/config"
	"github.com/printloom/fulfillment/internal/factory"
	"github.com/printloom/fulfillment/internal/handlers"
	"github.com/printloom/fulfillment/internal/logging"
	"github.com/printloom/fulfillment/internal/metrics"
	"github.com/printloom/fulfillment/internal/orders"
	"github.com/printloom/fulfillment/internal/payments"
	"github.com/printloom/fulfillment/internal/placement"
	"github.com/printloom/fulfillment/internal/render"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.Server.Env); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logging.Sync()
	logger := logging.L()

	// an empty secret would let tokens signed with the empty key through
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	clients, err := awsapi.NewClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	store := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders, cfg.Tables.LineItems, cfg.Tables.PaymentRefs)
	dispatcher := render.NewSQSDispatcher(clients.DynamoDB, clients.SQS, cfg.Tables.Designs, cfg.Queues.RenderQueueURL)
	meter := metrics.NewPublisher(clients.CloudWatch, cfg.Metrics.Namespace, logger)

	handlerCfg := handlers.HandlerConfig{
		Placement:     placement.NewOrchestrator(store, dispatcher, meter, logger),
		Payments:      payments.NewClient(cfg.Payment.APIBaseURL, cfg.Payment.SecretKey, logger),
		Webhook:       payments.NewReconciler(store, meter, logger),
		WebhookSecret: cfg.Payment.WebhookSecret,
		Factory:       factory.NewReconciler(store, cfg.Factory.Token, meter, logger),
		Assets:        assets.NewAuthorizer(store, assets.NewJWTVerifier(cfg.Auth.JWTSecret), clients.S3Presign, logger),
		Logger:        logger,
	}

	r := setupRouter(handlerCfg)

	// RUN_LOCAL starts a plain HTTP server for development.
	if cfg.Server.RunLocal {
		addr := ":" + cfg.Server.Port
		logger.Sugar().Infof("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
