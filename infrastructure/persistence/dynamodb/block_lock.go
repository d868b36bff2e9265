package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"assessment-backend/application/ports"
	"assessment-backend/domain/core/valueobjects"
	pkgerrors "assessment-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLockHeld is returned when another owner holds an unexpired lock
var ErrLockHeld = errors.New("lock already held")

// DistributedLock provides block locks using DynamoDB conditional writes
type DistributedLock struct {
	client    Client
	tableName string
	ttl       time.Duration
	timeout   time.Duration
	owner     string
	logger    *zap.Logger
	now       func() time.Time
}

var _ ports.BlockLocker = (*DistributedLock)(nil)

// lockRecord represents a lock item
type lockRecord struct {
	PK         string `dynamodbav:"PK"` // LOCK#BLOCK#<n>
	SK         string `dynamodbav:"SK"` // LOCK
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  string `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"` // DynamoDB TTL attribute
}

// NewDistributedLock creates a lock manager. ttl bounds how long a crashed
// holder can block others; timeout bounds how long LockBlock waits.
func NewDistributedLock(client Client, tableName string, ttl, timeout time.Duration, logger *zap.Logger) *DistributedLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		timeout:   timeout,
		owner:     uuid.New().String(),
		logger:    logger,
		now:       time.Now,
	}
}

// Limits reports the lock TTL and the acquire timeout
func (dl *DistributedLock) Limits() (ttl, timeout time.Duration) {
	return dl.ttl, dl.timeout
}

// LockBlock acquires the reconcile lock for a block, retrying until the
// configured timeout.
func (dl *DistributedLock) LockBlock(ctx context.Context, blockID valueobjects.BlockID) (func(context.Context) error, error) {
	resource := "BLOCK#" + blockID.String()
	lockID, err := dl.tryAcquire(ctx, resource)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		return dl.release(ctx, resource, lockID)
	}, nil
}

func (dl *DistributedLock) acquire(ctx context.Context, resource string) (string, error) {
	lockID := uuid.New().String()
	now := dl.now().UTC()
	expiresAt := now.Add(dl.ttl)

	rec := lockRecord{
		PK:         "LOCK#" + resource,
		SK:         "LOCK",
		LockID:     lockID,
		Owner:      dl.owner,
		AcquiredAt: formatTimestamp(now),
		ExpiresAt:  formatTimestamp(expiresAt),
		TTL:        expiresAt.Unix(),
	}

	_, err := dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(dl.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: rec.PK},
			"SK":         &types.AttributeValueMemberS{Value: rec.SK},
			"LockID":     &types.AttributeValueMemberS{Value: rec.LockID},
			"Owner":      &types.AttributeValueMemberS{Value: rec.Owner},
			"AcquiredAt": &types.AttributeValueMemberS{Value: rec.AcquiredAt},
			"ExpiresAt":  &types.AttributeValueMemberS{Value: rec.ExpiresAt},
			"TTL":        &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: formatTimestamp(now)},
		},
	})
	if err != nil {
		if IsConditionFailed(err) {
			return "", ErrLockHeld
		}
		return "", pkgerrors.NewStorageError("acquire block lock", err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
		zap.Duration("ttl", dl.ttl),
	)
	return lockID, nil
}

func (dl *DistributedLock) tryAcquire(ctx context.Context, resource string) (string, error) {
	deadline := dl.now().Add(dl.timeout)
	retryInterval := 50 * time.Millisecond

	for {
		lockID, err := dl.acquire(ctx, resource)
		if err == nil {
			return lockID, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return "", err
		}
		if !dl.now().Before(deadline) {
			return "", pkgerrors.NewStorageError("acquire block lock",
				fmt.Errorf("timeout acquiring lock for %s: %w", resource, ErrLockHeld))
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryInterval):
			if retryInterval < time.Second {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}
}

func (dl *DistributedLock) release(ctx context.Context, resource, lockID string) error {
	_, err := dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(dl.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "LOCK#" + resource},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lockId": &types.AttributeValueMemberS{Value: lockID},
			":owner":  &types.AttributeValueMemberS{Value: dl.owner},
		},
	})
	if err != nil {
		if IsConditionFailed(err) {
			dl.logger.Warn("Lock already released or taken over after expiry",
				zap.String("resource", resource),
				zap.String("lockID", lockID),
			)
			return nil
		}
		return pkgerrors.NewStorageError("release block lock", err)
	}
	return nil
}
