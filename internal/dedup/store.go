// Package dedup owns the collector's watermark and recent-ID state. The state
// lives in a single DynamoDB item guarded by a version token: every save is a
// conditional put, so overlapping collector runs cannot silently overwrite
// each other's progress.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/altsignal/tickersent/internal/models"
)

// ErrConflict is returned when the conditional write loses the race. Callers
// re-run their read-modify-write a bounded number of times.
var ErrConflict = errors.New("dedup state version conflict")

type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type Store struct {
	api      dynamoAPI
	table    string
	pipeline string
}

type stateItem struct {
	Pipeline  string           `dynamodbav:"pipeline"`
	Watermark int64            `dynamodbav:"watermark"`
	RecentIDs map[string]int64 `dynamodbav:"recent_ids,omitempty"`
	Version   int64            `dynamodbav:"version"`
	UpdatedAt int64            `dynamodbav:"updated_at"`
}

func NewStore(api dynamoAPI, table, pipeline string) *Store {
	return &Store{api: api, table: table, pipeline: pipeline}
}

// Load returns the current state and its version token. A missing item yields
// a zero state with version 0, which Save treats as "create if absent".
func (s *Store) Load(ctx context.Context) (models.DedupState, int64, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"pipeline": &types.AttributeValueMemberS{Value: s.pipeline},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return models.DedupState{}, 0, fmt.Errorf("[DedupStore] Failed to load state: %w", err)
	}

	if len(out.Item) == 0 {
		return models.DedupState{RecentIDs: map[string]int64{}}, 0, nil
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return models.DedupState{}, 0, fmt.Errorf("[DedupStore] Failed to unmarshal state: %w", err)
	}

	state := models.DedupState{Watermark: item.Watermark, RecentIDs: item.RecentIDs}
	if state.RecentIDs == nil {
		state.RecentIDs = map[string]int64{}
	}
	return state, item.Version, nil
}

// Save writes the state conditionally on the version being unchanged since
// Load. A lost race surfaces as ErrConflict.
func (s *Store) Save(ctx context.Context, state models.DedupState, version int64) error {
	item, err := attributevalue.MarshalMap(stateItem{
		Pipeline:  s.pipeline,
		Watermark: state.Watermark,
		RecentIDs: state.RecentIDs,
		Version:   version + 1,
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("[DedupStore] Failed to marshal state: %w", err)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}
	if version == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(pipeline)")
	} else {
		in.ConditionExpression = aws.String("#v = :v")
		in.ExpressionAttributeNames = map[string]string{"#v": "version"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", version)},
		}
	}

	if _, err := s.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			slog.Warn("[DedupStore] Version conflict on save",
				slog.Int64("version", version))
			return ErrConflict
		}
		return fmt.Errorf("[DedupStore] Failed to save state: %w", err)
	}

	return nil
}

// Prune drops recent IDs whose created_utc fell below watermark minus the
// grace window. Bounds set growth; out-of-order arrivals inside the window
// are still caught.
func Prune(state models.DedupState, grace time.Duration) models.DedupState {
	cutoff := state.Watermark - int64(grace.Seconds())
	pruned := make(map[string]int64, len(state.RecentIDs))
	for id, createdAt := range state.RecentIDs {
		if createdAt >= cutoff {
			pruned[id] = createdAt
		}
	}
	state.RecentIDs = pruned
	return state
}
