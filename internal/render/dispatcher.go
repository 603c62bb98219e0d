package render

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/printloom/fulfillment/internal/awsapi"
)

// TaskInput identifies the line item a render task is prepared for.
type TaskInput struct {
	DesignID   string
	SKU        string
	OrderID    string
	LineItemID string
}

// TaskPayload is the message handed to the render execution queue.
type TaskPayload struct {
	OrderID    string `json:"order_id"`
	LineItemID string `json:"line_item_id"`
	DesignID   string `json:"design_id"`
	SKU        string `json:"sku"`
	Source     string `json:"source"`
	PrintSpec  string `json:"print_spec"`
	SafeArea   string `json:"safe_area"`
	Checksum   string `json:"checksum,omitempty"`
}

// TaskPrep is the result of preparing a render task for one line item.
type TaskPrep struct {
	Payload        TaskPayload
	PrintSpec      string
	SafeArea       string
	Source         string
	DesignOwner    string
	DesignChecksum string
}

// Dispatcher prepares print-ready render jobs and hands them to the execution
// queue. Both calls are fallible; callers isolate every failure to the single
// line item being processed.
type Dispatcher interface {
	PrepareRenderTask(ctx context.Context, in TaskInput) (*TaskPrep, error)
	EnqueueRenderTask(ctx context.Context, payload TaskPayload) error
}

// design is the read-only collaborator document backing task preparation.
type design struct {
	DesignID       string `dynamodbav:"design_id"` // PK
	OwnerUID       string `dynamodbav:"owner_uid"`
	SourceLocation string `dynamodbav:"source_location"`
	Checksum       string `dynamodbav:"checksum,omitempty"`
	PrintSpec      string `dynamodbav:"print_spec"`
	SafeArea       string `dynamodbav:"safe_area"`
}

// SQSDispatcher implements Dispatcher against the designs table and an SQS queue.
type SQSDispatcher struct {
	dynamo     awsapi.DynamoDBAPI
	sqsClient  awsapi.SQSAPI
	designsTbl string
	queueURL   string
}

func NewSQSDispatcher(dynamo awsapi.DynamoDBAPI, sqsClient awsapi.SQSAPI, designsTable, queueURL string) *SQSDispatcher {
	return &SQSDispatcher{
		dynamo:     dynamo,
		sqsClient:  sqsClient,
		designsTbl: designsTable,
		queueURL:   queueURL,
	}
}

// PrepareRenderTask loads the design document and derives the print job for
// one line item. Fails with a descriptive error when the design is missing or
// carries no usable source.
func (d *SQSDispatcher) PrepareRenderTask(ctx context.Context, in TaskInput) (*TaskPrep, error) {
	out, err := d.dynamo.GetItem(ctx, &dyn.GetItemInput{
		TableName: &d.designsTbl,
		Key: map[string]types.AttributeValue{
			"design_id": &types.AttributeValueMemberS{Value: in.DesignID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load design %s: %w", in.DesignID, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("design not found: %s", in.DesignID)
	}

	var dsn design
	if err := attributevalue.UnmarshalMap(out.Item, &dsn); err != nil {
		return nil, fmt.Errorf("unmarshal design %s: %w", in.DesignID, err)
	}
	if dsn.SourceLocation == "" {
		return nil, fmt.Errorf("design %s has no source asset", in.DesignID)
	}

	return &TaskPrep{
		Payload: TaskPayload{
			OrderID:    in.OrderID,
			LineItemID: in.LineItemID,
			DesignID:   in.DesignID,
			SKU:        in.SKU,
			Source:     dsn.SourceLocation,
			PrintSpec:  dsn.PrintSpec,
			SafeArea:   dsn.SafeArea,
			Checksum:   dsn.Checksum,
		},
		PrintSpec:      dsn.PrintSpec,
		SafeArea:       dsn.SafeArea,
		Source:         dsn.SourceLocation,
		DesignOwner:    dsn.OwnerUID,
		DesignChecksum: dsn.Checksum,
	}, nil
}

// EnqueueRenderTask sends the payload to the render execution queue with the
// order and line item ids attached as message attributes.
func (d *SQSDispatcher) EnqueueRenderTask(ctx context.Context, payload TaskPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal render task: %w", err)
	}
	bodyStr := string(body)

	input := &sqs.SendMessageInput{
		QueueUrl:    &d.queueURL,
		MessageBody: &bodyStr,
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"order_id": {
				DataType:    awsString("String"),
				StringValue: &payload.OrderID,
			},
			"line_item_id": {
				DataType:    awsString("String"),
				StringValue: &payload.LineItemID,
			},
		},
	}

	if _, err := d.sqsClient.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send render task: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
