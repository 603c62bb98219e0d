package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// RenderResultStore is the slice of the orders store the worker needs.
type RenderResultStore interface {
	MarkRendered(ctx context.Context, orderID, lineItemID, assetLocation string) error
	MarkRenderFailed(ctx context.Context, orderID, lineItemID, message string) error
}

// Processor applies render results to line items. Delivery is at-least-once;
// every merge is a pure overwrite, so replays converge.
type Processor struct {
	store  RenderResultStore
	logger *zap.Logger
}

func NewProcessor(store RenderResultStore, logger *zap.Logger) *Processor {
	return &Processor{store: store, logger: logger}
}

// Handle receives an SQS batch event and processes each message. Returning an
// error makes the runtime retry the batch; poisoned messages end in the DLQ.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("render result processing failed", zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg ResultMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid result body: %w", err)
	}
	if msg.OrderID == "" || msg.LineItemID == "" {
		return fmt.Errorf("result message missing identifiers: %s", rec.Body)
	}

	switch msg.Status {
	case ResultRendered:
		if msg.AssetLocation == "" {
			return fmt.Errorf("rendered result for line item %s has no asset location", msg.LineItemID)
		}
		if err := p.store.MarkRendered(ctx, msg.OrderID, msg.LineItemID, msg.AssetLocation); err != nil {
			return fmt.Errorf("mark line item %s rendered: %w", msg.LineItemID, err)
		}
		p.logger.Info("line item rendered",
			zap.String("order_id", msg.OrderID),
			zap.String("line_item_id", msg.LineItemID))
	case ResultFailed:
		reason := msg.Error
		if reason == "" {
			reason = "render engine reported failure"
		}
		if err := p.store.MarkRenderFailed(ctx, msg.OrderID, msg.LineItemID, reason); err != nil {
			return fmt.Errorf("mark line item %s failed: %w", msg.LineItemID, err)
		}
		p.logger.Warn("line item render failed",
			zap.String("order_id", msg.OrderID),
			zap.String("line_item_id", msg.LineItemID),
			zap.String("reason", reason))
	default:
		return fmt.Errorf("unknown render result status %q for line item %s", msg.Status, msg.LineItemID)
	}
	return nil
}
