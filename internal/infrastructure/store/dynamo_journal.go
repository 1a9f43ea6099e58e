package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/pharma-exchange/internal/domain/stock"
)

// DynamoJournal keeps an append-only audit trail of stock movements in
// DynamoDB. Partition key is the item id, sort key the movement id, so
// a movement is written at most once even when the consumer redelivers.
type DynamoJournal struct {
	client    *dynamodb.Client
	tableName string
}

type dynamoMovement struct {
	ItemID     string `dynamodbav:"item_id"`
	ID         string `dynamodbav:"id"`
	EventType  string `dynamodbav:"event_type"`
	Data       string `dynamodbav:"data"`
	OccurredAt string `dynamodbav:"occurred_at"`
}

func NewDynamoJournal(client *dynamodb.Client, tableName string) *DynamoJournal {
	return &DynamoJournal{client: client, tableName: tableName}
}

// Append writes one movement record. Duplicate ids are ignored.
func (j *DynamoJournal) Append(ctx context.Context, m *stock.Movement) error {
	item := dynamoMovement{
		ItemID:     m.ItemID,
		ID:         m.ID,
		EventType:  m.EventType,
		Data:       string(m.Data),
		OccurredAt: m.OccurredAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal movement: %w", err)
	}

	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(j.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil
		}
		return fmt.Errorf("failed to put movement: %w", err)
	}
	return nil
}
