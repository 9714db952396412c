package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pkPrefix   = "SESSION#"
	defaultTTL = 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps sessions in a DynamoDB table keyed by PK. Stale sessions
// expire through the table's TTL attribute "ttl".
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore creates a DynamoStore. A non-positive ttl selects 24h.
func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("session: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("session: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

func sessionPK(userID int64) string {
	return pkPrefix + strconv.FormatInt(userID, 10)
}

func (d *DynamoStore) key(userID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(userID)},
	}
}

func (d *DynamoStore) Get(ctx context.Context, userID int64) (Session, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.key(userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Session{}, fmt.Errorf("session: Get: %w", err)
	}
	empty := Session{UserID: userID, Answers: map[string]string{}}
	if out == nil || len(out.Item) == 0 {
		return empty, nil
	}
	s, expires, err := itemToSession(userID, out.Item)
	if err != nil {
		return Session{}, fmt.Errorf("session: Get decode: %w", err)
	}
	// TTL deletion is lazy on the DynamoDB side.
	if expires > 0 && d.now().Unix() >= expires {
		return empty, nil
	}
	return s, nil
}

func (d *DynamoStore) Set(ctx context.Context, s Session) error {
	now := d.now().UTC()
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      sessionItem(s, now, now.Add(d.ttl).Unix()),
	})
	if err != nil {
		return fmt.Errorf("session: Set: %w", err)
	}
	return nil
}

func (d *DynamoStore) Clear(ctx context.Context, userID int64) error {
	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(userID),
	})
	if err != nil {
		return fmt.Errorf("session: Clear: %w", err)
	}
	return nil
}

func sessionItem(s Session, updatedAt time.Time, expires int64) map[string]types.AttributeValue {
	answers := make(map[string]types.AttributeValue, len(s.Answers))
	for k, v := range s.Answers {
		answers[k] = &types.AttributeValueMemberS{Value: v}
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(s.UserID)},
		"step":      &types.AttributeValueMemberS{Value: s.Step.String()},
		"answers":   &types.AttributeValueMemberM{Value: answers},
		"updatedAt": &types.AttributeValueMemberS{Value: updatedAt.Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)},
	}
}

func itemToSession(userID int64, item map[string]types.AttributeValue) (Session, int64, error) {
	s := Session{UserID: userID, Answers: map[string]string{}}

	stepAttr, ok := item["step"].(*types.AttributeValueMemberS)
	if !ok {
		return Session{}, 0, errors.New(`attribute "step" is missing or not a string`)
	}
	step, err := ParseStep(stepAttr.Value)
	if err != nil {
		return Session{}, 0, err
	}
	s.Step = step

	if m, ok := item["answers"].(*types.AttributeValueMemberM); ok {
		for k, v := range m.Value {
			sv, ok := v.(*types.AttributeValueMemberS)
			if !ok {
				return Session{}, 0, fmt.Errorf("answer %q is not a string", k)
			}
			s.Answers[k] = sv.Value
		}
	}

	if u, ok := item["updatedAt"].(*types.AttributeValueMemberS); ok {
		if ts, err := time.Parse(time.RFC3339Nano, u.Value); err == nil {
			s.UpdatedAt = ts
		}
	}

	var expires int64
	if n, ok := item["ttl"].(*types.AttributeValueMemberN); ok {
		expires, err = strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return Session{}, 0, fmt.Errorf("parse ttl: %w", err)
		}
	}
	return s, expires, nil
}
