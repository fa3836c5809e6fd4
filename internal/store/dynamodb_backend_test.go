package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iamCapel/mopc-reportes/internal/models"
	"github.com/iamCapel/mopc-reportes/internal/store"
)

// MockDynamoDBClient es un mock del cliente DynamoDB
type MockDynamoDBClient struct {
	mock.Mock
}

func (m *MockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.GetItemOutput), args.Error(1)
}

func (m *MockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *MockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func (m *MockDynamoDBClient) Scan(ctx context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dynamodb.ScanOutput), args.Error(1)
}

func (m *MockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, params)
	return &dynamodb.DescribeTableOutput{}, args.Error(0)
}

var tables = map[string]string{
	store.CollectionReports:        "mopc_reports",
	store.CollectionPendingReports: "mopc_pending_reports",
	store.CollectionUsers:          "mopc_users",
}

func TestDynamoDBBackend_PutSetsPartitionKey(t *testing.T) {
	// Arrange
	client := new(MockDynamoDBClient)
	backend := store.NewDynamoDBBackend(client, tables)
	report := models.Report{ID: "rpt-1", NumeroReporte: "DCR-2025-000001", Provincia: "Peravia"}

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		id, ok := in.Item["id"].(*types.AttributeValueMemberS)
		return *in.TableName == "mopc_reports" && ok && id.Value == "rpt-1"
	})).Return(nil)

	// Act
	err := backend.Put(context.Background(), store.CollectionReports, report.ID, &report)

	// Assert
	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDynamoDBBackend_Get(t *testing.T) {
	client := new(MockDynamoDBClient)
	backend := store.NewDynamoDBBackend(client, tables)

	item, err := attributevalue.MarshalMap(models.User{ID: "u-1", Username: "ana", Role: models.RoleTecnico})
	require.NoError(t, err)
	client.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return in.Key["id"].(*types.AttributeValueMemberS).Value == "u-1"
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)
	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	var u models.User
	found, err := backend.Get(context.Background(), store.CollectionUsers, "u-1", &u)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ana", u.Username)

	found, err = backend.Get(context.Background(), store.CollectionUsers, "u-2", &u)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDynamoDBBackend_QueryFiltersByField(t *testing.T) {
	client := new(MockDynamoDBClient)
	backend := store.NewDynamoDBBackend(client, tables)

	item, err := attributevalue.MarshalMap(models.PendingReport{ID: "pending_1", UserID: "ana"})
	require.NoError(t, err)
	client.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
		v := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberS)
		return in.ExpressionAttributeNames["#f"] == "userId" && v.Value == "ana"
	})).Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{item}}, nil)

	var drafts []models.PendingReport
	err = backend.Query(context.Background(), store.CollectionPendingReports, "userId", "ana", &drafts)

	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "pending_1", drafts[0].ID)
}

func TestDynamoDBBackend_Errors(t *testing.T) {
	client := new(MockDynamoDBClient)
	backend := store.NewDynamoDBBackend(client, tables)
	client.On("DeleteItem", mock.Anything, mock.Anything).Return(errors.New("throttled"))
	client.On("DescribeTable", mock.Anything, mock.Anything).Return(nil)

	err := backend.Delete(context.Background(), store.CollectionReports, "rpt-1")
	assert.ErrorContains(t, err, "throttled")

	err = backend.Put(context.Background(), store.CollectionAccounts, "a", map[string]string{})
	assert.ErrorContains(t, err, "sin tabla")

	assert.NoError(t, backend.Ping(context.Background()))
}
