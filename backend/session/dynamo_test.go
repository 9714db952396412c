package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
	puts  int
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts++
	f.items[pkOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, pkOf(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestNewDynamoStore_ValidatesArgs(t *testing.T) {
	_, err := NewDynamoStore(nil, "sessions", time.Hour)
	require.Error(t, err)

	_, err = NewDynamoStore(newFakeDynamo(), " ", time.Hour)
	require.Error(t, err)

	s, err := NewDynamoStore(newFakeDynamo(), "sessions", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultTTL, s.ttl)
}

func TestDynamoStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	api := newFakeDynamo()
	store, err := NewDynamoStore(api, "sessions", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, Session{
		UserID:  99,
		Step:    StepAwaitingMeetingOptIn,
		Answers: map[string]string{"name": "Bob", "city": "1", "activity": "2"},
	}))
	require.Contains(t, api.items, "SESSION#99")

	s, err := store.Get(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingMeetingOptIn, s.Step)
	assert.Equal(t, "Bob", s.Answers["name"])
	assert.Equal(t, "2", s.Answers["activity"])
	assert.False(t, s.UpdatedAt.IsZero())

	require.NoError(t, store.Clear(ctx, 99))
	s, err = store.Get(ctx, 99)
	require.NoError(t, err)
	assert.False(t, s.Active())
}

func TestDynamoStore_ExpiredItemIsInactive(t *testing.T) {
	ctx := context.Background()
	api := newFakeDynamo()
	store, err := NewDynamoStore(api, "sessions", time.Minute)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	require.NoError(t, store.Set(ctx, Session{UserID: 5, Step: StepAwaitingName}))

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	s, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.False(t, s.Active())
}

func TestDynamoStore_Errors(t *testing.T) {
	ctx := context.Background()
	api := newFakeDynamo()
	store, err := NewDynamoStore(api, "sessions", time.Hour)
	require.NoError(t, err)

	api.items["SESSION#3"] = map[string]types.AttributeValue{
		"PK":   &types.AttributeValueMemberS{Value: "SESSION#3"},
		"step": &types.AttributeValueMemberS{Value: "bogus"},
	}
	_, err = store.Get(ctx, 3)
	require.Error(t, err)

	api.err = errors.New("throttled")
	_, err = store.Get(ctx, 1)
	require.ErrorContains(t, err, "session: Get")
	require.ErrorContains(t, store.Set(ctx, Session{UserID: 1}), "session: Set")
	require.ErrorContains(t, store.Clear(ctx, 1), "session: Clear")
}
