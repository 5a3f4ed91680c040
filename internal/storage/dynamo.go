package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/ignite/sendguard/internal/domain"
	"github.com/ignite/sendguard/internal/service/audit"
)

// DynamoAPI is the subset of the DynamoDB client the audit store calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrEntityRequired is returned by ListAudit when the filter does not name
// a single entity; the table is keyed by entity.
var ErrEntityRequired = errors.New("dynamo audit: entity type and id are required")

// sortKeyLayout keeps sort keys lexically ordered by time.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

// auditItem is one audit entry as stored in DynamoDB.
type auditItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`
	domain.AuditEntry
	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// AuditStore mirrors audit entries into a DynamoDB table with PK
// "<entity_type>#<entity_id>" and SK "<timestamp>#<id>".
type AuditStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
}

// NewAuditStore wraps an existing DynamoDB client. A zero ttl stores items
// without expiry.
func NewAuditStore(client DynamoAPI, tableName string, ttl time.Duration) *AuditStore {
	return &AuditStore{client: client, tableName: tableName, ttl: ttl}
}

// NewAuditStoreFromConfig builds the DynamoDB client from aws config.
func NewAuditStoreFromConfig(cfg aws.Config, tableName string, ttl time.Duration) *AuditStore {
	return NewAuditStore(dynamodb.NewFromConfig(cfg), tableName, ttl)
}

func partitionKey(entity domain.AuditEntity, id string) string {
	return fmt.Sprintf("%s#%s", entity, id)
}

// Append implements audit.Sink.
func (s *AuditStore) Append(ctx context.Context, e domain.AuditEntry) error {
	item := auditItem{
		PK:         partitionKey(e.EntityType, e.EntityID),
		SK:         e.CreatedAt.UTC().Format(sortKeyLayout) + "#" + e.ID,
		AuditEntry: e,
	}
	if s.ttl > 0 {
		item.TTL = e.CreatedAt.Add(s.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling audit item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("putting audit item to DynamoDB: %w", err)
	}
	return nil
}

// ListAudit implements audit.Reader for a single entity, newest first.
func (s *AuditStore) ListAudit(ctx context.Context, f audit.Filter) ([]domain.AuditEntry, error) {
	if f.EntityType == "" || f.EntityID == "" {
		return nil, ErrEntityRequired
	}
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partitionKey(f.EntityType, f.EntityID)},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if f.Limit > 0 {
		in.Limit = aws.Int32(int32(f.Limit))
	}

	result, err := s.client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("querying audit items: %w", err)
	}

	var items []auditItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("unmarshaling audit items: %w", err)
	}
	out := make([]domain.AuditEntry, 0, len(items))
	for _, it := range items {
		out = append(out, it.AuditEntry)
	}
	return out, nil
}

var (
	_ audit.Sink   = (*AuditStore)(nil)
	_ audit.Reader = (*AuditStore)(nil)
)
