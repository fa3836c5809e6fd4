package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoDBAPI is the subset of the DynamoDB client the backend uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBBackend stores each collection in its own table, keyed by the
// string partition key "id".
type DynamoDBBackend struct {
	client DynamoDBAPI
	tables map[string]string
}

// NewDynamoDBBackend maps logical collections onto table names.
func NewDynamoDBBackend(client DynamoDBAPI, tables map[string]string) *DynamoDBBackend {
	return &DynamoDBBackend{
		client: client,
		tables: tables,
	}
}

func (ddb *DynamoDBBackend) table(collection string) (string, error) {
	name, ok := ddb.tables[collection]
	if !ok || name == "" {
		return "", fmt.Errorf("sin tabla DynamoDB para la colección %q", collection)
	}
	return name, nil
}

func keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (ddb *DynamoDBBackend) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	table, err := ddb.table(collection)
	if err != nil {
		return false, err
	}

	result, err := ddb.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       keyOf(id),
	})
	if err != nil {
		return false, fmt.Errorf("error lectura %s/%s: %w", collection, id, err)
	}

	if result.Item == nil {
		return false, nil
	}

	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("error unmarshalling %s/%s: %w", collection, id, err)
	}
	return true, nil
}

func (ddb *DynamoDBBackend) Put(ctx context.Context, collection, id string, doc any) error {
	table, err := ddb.table(collection)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("error marshalling %s/%s: %w", collection, id, err)
	}
	item["id"] = &types.AttributeValueMemberS{Value: id}

	_, err = ddb.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("error escritura %s/%s: %w", collection, id, err)
	}

	zap.S().Debugf("dynamodb: %s/%s guardado", collection, id)
	return nil
}

func (ddb *DynamoDBBackend) Delete(ctx context.Context, collection, id string) error {
	table, err := ddb.table(collection)
	if err != nil {
		return err
	}

	_, err = ddb.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       keyOf(id),
	})
	if err != nil {
		return fmt.Errorf("error borrado %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query scans the table with an equality filter. The collections are small
// (one ministry's field force), so a filtered scan replaces secondary indexes.
func (ddb *DynamoDBBackend) Query(ctx context.Context, collection, field, value string, out any) error {
	table, err := ddb.table(collection)
	if err != nil {
		return err
	}

	items, err := ddb.scan(ctx, &dynamodb.ScanInput{
		TableName:                aws.String(table),
		FilterExpression:         aws.String("#f = :v"),
		ExpressionAttributeNames: map[string]string{"#f": field},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
	})
	if err != nil {
		return fmt.Errorf("error consulta %s por %s: %w", collection, field, err)
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("error unmarshalling %s: %w", collection, err)
	}
	return nil
}

func (ddb *DynamoDBBackend) All(ctx context.Context, collection string, out any) error {
	table, err := ddb.table(collection)
	if err != nil {
		return err
	}

	items, err := ddb.scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(table),
	})
	if err != nil {
		return fmt.Errorf("error lectura completa %s: %w", collection, err)
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("error unmarshalling %s: %w", collection, err)
	}
	return nil
}

func (ddb *DynamoDBBackend) scan(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(ddb.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// Ping describes the reports table.
func (ddb *DynamoDBBackend) Ping(ctx context.Context) error {
	table, err := ddb.table(CollectionReports)
	if err != nil {
		return err
	}
	_, err = ddb.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	return err
}

func (ddb *DynamoDBBackend) Close(context.Context) error { return nil }
