package repository

import (
	"context"
	"errors"
	"strconv"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const defaultOrdersTableName = "orders"

// DynamoDBAPI is the subset of *dynamodb.Client the repository uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type orderItem struct {
	ID                   string `dynamodbav:"id"`
	Drink                string `dynamodbav:"drink"`
	Size                 string `dynamodbav:"size"`
	Milk                 string `dynamodbav:"milk"`
	Shots                int    `dynamodbav:"shots"`
	Cost                 string `dynamodbav:"cost"`
	Status               string `dynamodbav:"status"`
	Paid                 bool   `dynamodbav:"paid"`
	CardLastFour         string `dynamodbav:"card_last_four,omitempty"`
	PaymentTransactionID string `dynamodbav:"payment_transaction_id,omitempty"`
	PaidAt               string `dynamodbav:"paid_at,omitempty"`
	Version              int64  `dynamodbav:"version"`
	CreatedAt            string `dynamodbav:"created_at"`
	UpdatedAt            string `dynamodbav:"updated_at"`
}

// OrderDynamoRepository persists orders in DynamoDB.
//
// Table requirements:
//   - PK: id (string)
//
// Every write after Create is conditioned on the stored version, so two
// writers holding the same snapshot cannot both succeed.
type OrderDynamoRepository struct {
	ddb       DynamoDBAPI
	tableName string
}

var _ interfaces.IOrderRepository = (*OrderDynamoRepository)(nil)

func NewOrderDynamoRepository(ddb DynamoDBAPI, tableName string) *OrderDynamoRepository {
	if tableName == "" {
		tableName = defaultOrdersTableName
	}
	return &OrderDynamoRepository{ddb: ddb, tableName: tableName}
}

func (r *OrderDynamoRepository) Create(ctx context.Context, o entities.Order) (entities.Order, error) {
	if o.Version == 0 {
		o.Version = 1
	}
	av, err := attributevalue.MarshalMap(toOrderItem(o))
	if err != nil {
		return entities.Order{}, err
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	if err != nil {
		return entities.Order{}, err
	}
	return o, nil
}

func (r *OrderDynamoRepository) GetByID(ctx context.Context, id string) (entities.Order, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.Order{}, err
	}
	if len(out.Item) == 0 {
		return entities.Order{}, nil
	}

	var it orderItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return entities.Order{}, err
	}
	return fromOrderItem(it), nil
}

// Update replaces the item when its stored version still equals o.Version and
// returns the order with the bumped version.
func (r *OrderDynamoRepository) Update(ctx context.Context, o entities.Order) (entities.Order, error) {
	expected := o.Version
	o.Version++
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = nowUTC()
	}
	av, err := attributevalue.MarshalMap(toOrderItem(o))
	if err != nil {
		return entities.Order{}, err
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       aws.String("attribute_exists(#id) AND #version = :expected"),
		ExpressionAttributeNames:  versionNames(),
		ExpressionAttributeValues: expectedVersion(expected),
	})
	if err != nil {
		return entities.Order{}, mapConditionFailure(err)
	}
	return o, nil
}

func (r *OrderDynamoRepository) Delete(ctx context.Context, id string, version int64) error {
	_, err := r.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression:       aws.String("attribute_exists(#id) AND #version = :expected"),
		ExpressionAttributeNames:  versionNames(),
		ExpressionAttributeValues: expectedVersion(version),
	})
	return mapConditionFailure(err)
}

// List scans the table. Status is pushed down as a filter expression; the paid
// flag and ordering are applied in memory.
func (r *OrderDynamoRepository) List(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	in := &dynamodb.ScanInput{
		TableName:      aws.String(r.tableName),
		ConsistentRead: aws.Bool(true),
	}
	if filter.Status != nil {
		in.FilterExpression = aws.String("#status = :status")
		in.ExpressionAttributeNames = map[string]string{"#status": "status"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(*filter.Status)},
		}
	}

	var out []entities.Order
	p := dynamodb.NewScanPaginator(r.ddb, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []orderItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, err
		}
		for _, it := range items {
			o := fromOrderItem(it)
			if filter.Matches(o) {
				out = append(out, o)
			}
		}
	}
	sortOrders(out)
	return out, nil
}

func (r *OrderDynamoRepository) Ping(ctx context.Context) error {
	_, err := r.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	return err
}

func versionNames() map[string]string {
	return map[string]string{"#id": "id", "#version": "version"}
}

func expectedVersion(v int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)},
	}
}

func mapConditionFailure(err error) error {
	if err == nil {
		return nil
	}
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return interfaces.ErrOrderVersionConflict
	}
	return err
}

func toOrderItem(o entities.Order) orderItem {
	return orderItem{
		ID:                   o.ID,
		Drink:                o.Drink,
		Size:                 string(o.Size),
		Milk:                 o.Milk,
		Shots:                o.Shots,
		Cost:                 o.Cost.StringFixed(2),
		Status:               string(o.Status),
		Paid:                 o.Paid,
		CardLastFour:         o.CardLastFour,
		PaymentTransactionID: o.PaymentTransactionID,
		PaidAt:               formatOptionalTime(o.PaidAt),
		Version:              o.Version,
		CreatedAt:            formatTime(o.CreatedAt),
		UpdatedAt:            formatTime(o.UpdatedAt),
	}
}

func fromOrderItem(it orderItem) entities.Order {
	return entities.Order{
		ID:                   it.ID,
		Drink:                it.Drink,
		Size:                 entities.OrderSize(it.Size),
		Milk:                 it.Milk,
		Shots:                it.Shots,
		Cost:                 parseCost(it.Cost),
		Status:               entities.OrderStatus(it.Status),
		Paid:                 it.Paid,
		CardLastFour:         it.CardLastFour,
		PaymentTransactionID: it.PaymentTransactionID,
		PaidAt:               parseOptionalTime(it.PaidAt),
		Version:              it.Version,
		CreatedAt:            parseTime(it.CreatedAt),
		UpdatedAt:            parseTime(it.UpdatedAt),
	}
}
