package dynamodb

import (
	"context"
	"testing"
	"time"

	"assessment-backend/domain/core/valueobjects"
	pkgerrors "assessment-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLockExpiresAfterConfiguredTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{}
	lock := NewDistributedLock(client, "scores", 45*time.Second, time.Second, zap.NewNop())
	lock.now = func() time.Time { return now }

	release, err := lock.LockBlock(context.Background(), valueobjects.MustBlockID(3))
	require.NoError(t, err)
	require.Len(t, client.puts, 1)

	item := client.puts[0].Item
	assert.Equal(t, "LOCK#BLOCK#3", item["PK"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, formatTimestamp(now.Add(45*time.Second)), item["ExpiresAt"].(*types.AttributeValueMemberS).Value)

	require.NoError(t, release(context.Background()))
	assert.Len(t, client.deletes, 1)
}

func TestLockGivesUpAtConfiguredTimeout(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &fakeClient{putErrs: []error{&types.ConditionalCheckFailedException{}}}
	lock := NewDistributedLock(client, "scores", 10*time.Second, 5*time.Second, zap.NewNop())
	// each reading of the clock moves it three seconds on
	lock.now = func() time.Time {
		clock = clock.Add(3 * time.Second)
		return clock
	}

	_, err := lock.LockBlock(context.Background(), valueobjects.MustBlockID(3))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStorage(err))
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Len(t, client.puts, 1)
}
