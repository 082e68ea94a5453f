package dynamo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phone-verify/internal/domain"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"attempts": 1})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "attempts"}, ue.Names)
	n, ok := ue.Values[":v0"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1", n.Value)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		fieldVersion:    int64(2),
		fieldAttempts:   3,
		fieldConsumedAt: "2026-01-01T00:00:00Z",
	}
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)
	assert.Equal(t, fieldAttempts, ue1.Names["#f0"])
	assert.Equal(t, fieldConsumedAt, ue1.Names["#f1"])
	assert.Equal(t, fieldVersion, ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_Empty(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	keys := make([]map[string]types.AttributeValue, 0, 60)
	for i := 0; i < 60; i++ {
		keys = append(keys, strKey(fieldPhone, fmt.Sprintf("+2010%08d", i)))
	}
	parts := chunk(keys)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 25)
	assert.Len(t, parts[1], 25)
	assert.Len(t, parts[2], 10)
	assert.Nil(t, chunk(nil))
}

func TestPersistErr(t *testing.T) {
	cause := errors.New("throttled")
	err := persistErr("get item", cause)
	assert.True(t, errors.Is(err, domain.ErrStorePersistence))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, isConditionFailed(fmt.Errorf("wrap: %w", &types.ConditionalCheckFailedException{})))
}
