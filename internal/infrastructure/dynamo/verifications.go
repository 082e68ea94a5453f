package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/pkg/otp"
	"github.com/phone-verify/internal/pkg/phone"
)

// consumeRetries bounds optimistic-lock retries when a concurrent writer wins.
const consumeRetries = 3

// VerificationRepo stores one item per normalized phone. PK: phone.
// A PutItem on the same key is the supersede; the version attribute guards
// the read-evaluate-write of Consume.
type VerificationRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *VerificationRepo) Issue(ctx context.Context, rec *domain.VerificationRecord) error {
	stored := *rec
	stored.Attempts = 0
	stored.ConsumedAt = nil
	stored.ExpiresTTL = rec.ExpiresAt.Unix()
	// Any value distinct from the superseded item's version invalidates in-flight consumes.
	stored.Version = r.now().UnixNano()

	item, err := attributevalue.MarshalMap(&stored)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return persistErr("put verification", err)
	}
	rec.Version = stored.Version
	rec.ExpiresTTL = stored.ExpiresTTL
	return nil
}

func (r *VerificationRepo) Consume(ctx context.Context, phoneNum, code string, now time.Time, maxAttempts int) (domain.ConsumeResult, error) {
	matches := func(hash string) bool { return otp.Matches(hash, code) }
	for i := 0; i < consumeRetries; i++ {
		rec, err := r.get(ctx, phoneNum)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return domain.ConsumeNotFound, nil
		}

		result := rec.Evaluate(now, maxAttempts, matches)
		var updates map[string]interface{}
		switch result {
		case domain.ConsumeMismatch:
			updates = map[string]interface{}{fieldAttempts: rec.Attempts + 1}
		case domain.ConsumeAccepted:
			updates = map[string]interface{}{fieldConsumedAt: now}
		default:
			return result, nil
		}
		updates[fieldVersion] = rec.Version + 1

		err = r.conditionalUpdate(ctx, phoneNum, rec.Version, updates)
		if err == nil {
			return result, nil
		}
		if !isConditionFailed(err) {
			return "", persistErr("update verification", err)
		}
		slog.Debug("verification changed during consume, retrying", "phone", phone.Mask(phoneNum), "attempt", i+1)
	}
	return "", persistErr("consume verification", fmt.Errorf("gave up after %d concurrent updates", consumeRetries))
}

func (r *VerificationRepo) Clear(ctx context.Context, phones []string) (int, error) {
	n := 0
	for _, p := range phones {
		out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:    aws.String(r.tableName),
			Key:          strKey(fieldPhone, p),
			ReturnValues: types.ReturnValueAllOld,
		})
		if err != nil {
			return n, persistErr("delete verification", err)
		}
		if len(out.Attributes) > 0 {
			n++
		}
	}
	return n, nil
}

func (r *VerificationRepo) ClearAll(ctx context.Context) (int, error) {
	keys, err := r.scanKeys(ctx, nil)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, batch := range chunk(keys) {
		if err := r.batchDelete(ctx, batch); err != nil {
			return deleted, err
		}
		deleted += len(batch)
	}
	return deleted, nil
}

// SweepExpired deletes each scanned key under the same expiry condition, so a
// record reissued after the scan survives.
func (r *VerificationRepo) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	// expires_ttl is the floor of expires_at, so ttl < now.Unix() implies expires_at < now.
	names := map[string]string{"#ttl": fieldExpiresTTL}
	values := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
	}
	keys, err := r.scanKeys(ctx, &dynamodb.ScanInput{
		FilterExpression:          aws.String("#ttl < :now"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, k := range keys {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       k,
			ConditionExpression:       aws.String("#ttl < :now"),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		if isConditionFailed(err) {
			continue
		}
		if err != nil {
			return deleted, persistErr("sweep verification", err)
		}
		deleted++
	}
	return deleted, nil
}

func (r *VerificationRepo) get(ctx context.Context, phoneNum string) (*domain.VerificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldPhone, phoneNum),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, persistErr("get verification", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec domain.VerificationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &rec, nil
}

func (r *VerificationRepo) conditionalUpdate(ctx context.Context, phoneNum string, expected int64, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#ver"] = fieldVersion
	ue.Values[":expected"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldPhone, phoneNum),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("#ver = :expected"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

// scanKeys returns the key of every item matching filter, or of every item when filter is nil.
func (r *VerificationRepo) scanKeys(ctx context.Context, filter *dynamodb.ScanInput) ([]map[string]types.AttributeValue, error) {
	var keys []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		in := &dynamodb.ScanInput{
			TableName:            aws.String(r.tableName),
			ProjectionExpression: aws.String("#pk"),
			ExpressionAttributeNames: map[string]string{
				"#pk": fieldPhone,
			},
			ExclusiveStartKey: startKey,
		}
		if filter != nil {
			in.FilterExpression = filter.FilterExpression
			in.ExpressionAttributeValues = filter.ExpressionAttributeValues
			for k, v := range filter.ExpressionAttributeNames {
				in.ExpressionAttributeNames[k] = v
			}
		}
		out, err := r.client.Scan(ctx, in)
		if err != nil {
			return nil, persistErr("scan verifications", err)
		}
		for _, item := range out.Items {
			if pk, ok := item[fieldPhone]; ok {
				keys = append(keys, map[string]types.AttributeValue{fieldPhone: pk})
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return keys, nil
}

func (r *VerificationRepo) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	reqs := make([]types.WriteRequest, 0, len(keys))
	for _, k := range keys {
		reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
	}
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt == consumeRetries {
			return persistErr("batch delete verifications", fmt.Errorf("%d unprocessed deletes", len(pending[r.tableName])))
		}
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return persistErr("batch delete verifications", err)
		}
		pending = out.UnprocessedItems
	}
	return nil
}
