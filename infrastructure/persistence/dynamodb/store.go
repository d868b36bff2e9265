package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/core/aggregates"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	pkgerrors "assessment-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Client is the subset of the DynamoDB API used by the store and the lock.
// *dynamodb.Client satisfies it.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store implements ports.Store on a single DynamoDB table
type Store struct {
	client    Client
	tableName string
	indexName string
	logger    *zap.Logger
	now       func() time.Time
}

var _ ports.Store = (*Store)(nil)

// NewStore creates a new DynamoDB-backed store
func NewStore(client Client, tableName, indexName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
		now:       time.Now,
	}
}

// nextID atomically increments a named counter item and returns the new value
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	update := expression.Add(expression.Name("Seq"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, err
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterPK(name)},
			"SK": &types.AttributeValueMemberS{Value: "COUNTER"},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}

	seq, ok := out.Attributes["Seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("counter %s returned no sequence", name)
	}
	return strconv.ParseInt(seq.Value, 10, 64)
}

const maxStampAttempts = 5

// stampCreatedAt returns a createdAt for a new event of the subcomponent that
// is never earlier than one already handed out, whatever the local clock
// says. The subcomponent's watermark item only moves forward.
func (s *Store) stampCreatedAt(ctx context.Context, subID valueobjects.SubcomponentID, at time.Time) (time.Time, error) {
	key := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: subcomponentPK(subID)},
		"SK": &types.AttributeValueMemberS{Value: watermarkSK},
	}

	for attempt := 0; attempt < maxStampAttempts; attempt++ {
		stamp := formatTimestamp(at)
		cond := expression.Or(
			expression.AttributeNotExists(expression.Name("CreatedAt")),
			expression.Name("CreatedAt").LessThanEqual(expression.Value(stamp)),
		)
		update := expression.Set(expression.Name("CreatedAt"), expression.Value(stamp))
		expr, err := expression.NewBuilder().WithCondition(cond).WithUpdate(update).Build()
		if err != nil {
			return time.Time{}, err
		}

		_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.tableName),
			Key:                       key,
			ConditionExpression:       expr.Condition(),
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err == nil {
			return at, nil
		}
		if !IsConditionFailed(err) {
			return time.Time{}, err
		}

		// clock is behind the watermark: take the watermark and retry
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(s.tableName),
			Key:            key,
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return time.Time{}, err
		}
		mark, ok := out.Item["CreatedAt"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		if at, err = parseTimestamp(mark.Value); err != nil {
			return time.Time{}, err
		}
	}
	return time.Time{}, fmt.Errorf("watermark for %s kept moving after %d attempts", subID, maxStampAttempts)
}

// Record appends a score event
func (s *Store) Record(ctx context.Context, event *entities.ScoreEvent) (*entities.ScoreEvent, error) {
	id, err := s.nextID(ctx, counterScoreEvents)
	if err != nil {
		return nil, pkgerrors.NewStorageError("allocate score event id", err)
	}

	createdAt := event.CreatedAt()
	if !event.HasRequestedTimestamp() {
		createdAt, err = s.stampCreatedAt(ctx, event.SubcomponentID(), s.now().UTC())
		if err != nil {
			return nil, pkgerrors.NewStorageError("stamp score event", err)
		}
	}
	saved := event.WithIdentity(id, createdAt)

	av, err := attributevalue.MarshalMap(toScoreEventItem(saved))
	if err != nil {
		return nil, pkgerrors.NewStorageError("marshal score event", err)
	}

	cond := expression.AttributeNotExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, pkgerrors.NewStorageError("record score event", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return nil, pkgerrors.NewStorageError("record score event", err)
	}

	s.logger.Debug("Score event stored",
		zap.Int64("eventID", id),
		zap.String("subcomponentID", saved.SubcomponentID().String()),
	)
	return saved, nil
}

// Latest returns the subcomponent's most recent event
func (s *Store) Latest(ctx context.Context, subcomponentID valueobjects.SubcomponentID) (*entities.ScoreEvent, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(subcomponentPK(subcomponentID))).
		And(expression.Key("SK").BeginsWith(eventSKPrefix))

	events, err := s.queryEvents(ctx, keyCond, false, 1)
	if err != nil {
		return nil, pkgerrors.NewStorageError("read latest score event", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// ListBySubcomponent returns events at or after since, ascending
func (s *Store) ListBySubcomponent(ctx context.Context, subcomponentID valueobjects.SubcomponentID, since time.Time) ([]*entities.ScoreEvent, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(subcomponentPK(subcomponentID))).
		And(expression.Key("SK").Between(
			expression.Value(eventSKPrefix+formatTimestamp(since)),
			expression.Value(eventSKPrefix+"~"),
		))

	events, err := s.queryEvents(ctx, keyCond, true, 0)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list score events", err)
	}
	return events, nil
}

// LatestBefore returns the event immediately preceding ref
func (s *Store) LatestBefore(ctx context.Context, ref *entities.ScoreEvent) (*entities.ScoreEvent, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(subcomponentPK(ref.SubcomponentID()))).
		And(expression.Key("SK").Between(
			expression.Value(eventSKPrefix),
			expression.Value(precedingKey(eventSK(ref.CreatedAt(), ref.ID()))),
		))

	events, err := s.queryEvents(ctx, keyCond, false, 1)
	if err != nil {
		return nil, pkgerrors.NewStorageError("read previous score event", err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0], nil
}

// queryEvents runs a key query over score events, following pagination
// unless limit is positive.
func (s *Store) queryEvents(ctx context.Context, keyCond expression.KeyConditionBuilder, ascending bool, limit int32) ([]*entities.ScoreEvent, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(ascending),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	var out []*entities.ScoreEvent
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}

		var items []scoreEventItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			event, err := item.toEntity()
			if err != nil {
				return nil, err
			}
			out = append(out, event)
		}

		if limit > 0 || len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	if out == nil {
		out = make([]*entities.ScoreEvent, 0)
	}
	return out, nil
}

// Upsert replaces the block's cached aggregate
func (s *Store) Upsert(ctx context.Context, blockID valueobjects.BlockID, average *int, scoredCount int) error {
	item := toAggregateItem(blockID, average, scoredCount, len(blockID.Subcomponents()), s.now())
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewStorageError("marshal block cache", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return pkgerrors.NewStorageError("upsert block cache", err)
	}
	return nil
}

// Read returns the block's cached aggregate or nil
func (s *Store) Read(ctx context.Context, blockID valueobjects.BlockID) (*aggregates.BlockAggregate, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: blockPK(blockID)},
			"SK": &types.AttributeValueMemberS{Value: aggregateSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewStorageError("read block cache", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var item aggregateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.NewStorageError("unmarshal block cache", err)
	}
	agg, err := item.toAggregate()
	if err != nil {
		return nil, pkgerrors.NewStorageError("read block cache", err)
	}
	return agg, nil
}

// List returns every cached aggregate ordered by block number
func (s *Store) List(ctx context.Context) ([]aggregates.BlockAggregate, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(aggregatesGSIPK))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewStorageError("list block cache", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		IndexName:                 aws.String(s.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	out := make([]aggregates.BlockAggregate, 0)
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewStorageError("list block cache", err)
		}
		var items []aggregateItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, pkgerrors.NewStorageError("unmarshal block cache", err)
		}
		for _, item := range items {
			agg, err := item.toAggregate()
			if err != nil {
				return nil, pkgerrors.NewStorageError("list block cache", err)
			}
			out = append(out, *agg)
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}

// Append stores a history snapshot under the next history id
func (s *Store) Append(ctx context.Context, snapshot *entities.BlockHistorySnapshot) (*entities.BlockHistorySnapshot, error) {
	id, err := s.nextID(ctx, counterHistory)
	if err != nil {
		return nil, pkgerrors.NewStorageError("allocate history id", err)
	}

	saved := *snapshot
	saved.ID = id
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = s.now().UTC()
	}

	av, err := attributevalue.MarshalMap(toHistoryItem(&saved))
	if err != nil {
		return nil, pkgerrors.NewStorageError("marshal history snapshot", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return nil, pkgerrors.NewStorageError("append history snapshot", err)
	}
	return &saved, nil
}

// ListSince returns the block's snapshots at or after since, ascending by id
func (s *Store) ListSince(ctx context.Context, blockID valueobjects.BlockID, since time.Time) ([]*entities.BlockHistorySnapshot, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(blockPK(blockID))).
		And(expression.Key("SK").BeginsWith(historySKPrefix))
	filter := expression.Name("CreatedAt").GreaterThanEqual(expression.Value(formatTimestamp(since)))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, pkgerrors.NewStorageError("list history snapshots", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	out, err := s.querySnapshots(ctx, input, false)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list history snapshots", err)
	}
	return out, nil
}

// PreviousBefore returns the block's snapshot with the greatest id below id
func (s *Store) PreviousBefore(ctx context.Context, blockID valueobjects.BlockID, id int64) (*entities.BlockHistorySnapshot, error) {
	if id <= 1 {
		return nil, nil
	}
	keyCond := expression.Key("PK").Equal(expression.Value(blockPK(blockID))).
		And(expression.Key("SK").Between(
			expression.Value(historySKPrefix),
			expression.Value(historySK(id-1)),
		))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewStorageError("read previous history snapshot", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(1),
	}

	out, err := s.querySnapshots(ctx, input, true)
	if err != nil {
		return nil, pkgerrors.NewStorageError("read previous history snapshot", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (s *Store) querySnapshots(ctx context.Context, input *dynamodb.QueryInput, single bool) ([]*entities.BlockHistorySnapshot, error) {
	out := make([]*entities.BlockHistorySnapshot, 0)
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var items []historyItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			snap, err := item.toSnapshot()
			if err != nil {
				return nil, err
			}
			out = append(out, snap)
		}
		if single || len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}

// Ping checks the table is reachable and active
func (s *Store) Ping(ctx context.Context) error {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return pkgerrors.NewStorageError("describe table", err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive {
		return pkgerrors.NewStorageError("describe table",
			fmt.Errorf("table %s is %s", s.tableName, out.Table.TableStatus))
	}
	return nil
}

// Close is a no-op; the SDK client holds no connections that need closing
func (s *Store) Close() error {
	return nil
}

// precedingKey returns the largest sort key strictly below key for the
// fixed-width keys used by this table.
func precedingKey(key string) string {
	if key == "" {
		return key
	}
	b := []byte(key)
	last := len(b) - 1
	if b[last] == 0 {
		return string(b[:last])
	}
	b[last]--
	return string(b) + "~"
}

// IsConditionFailed reports whether err is a failed conditional write
func IsConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
