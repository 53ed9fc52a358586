package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zargham101/wildfire-backend/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrVersionConflict = errors.New("inventory version conflict")
)

// AgencyInventoryRepository is the durable store for agency pools.
// Save is a compare-and-swap on the record's version stamp: callers
// read, mutate, and write back, retrying the whole computation on
// ErrVersionConflict. That serializes every check-then-deduct (and
// every re-provisioning) per agency without cross-agency coordination.
type AgencyInventoryRepository interface {
	Get(ctx context.Context, agencyID string) (*models.AgencyInventory, error)
	Create(ctx context.Context, inv *models.AgencyInventory) error
	Save(ctx context.Context, inv *models.AgencyInventory) error
}

// DynamoAgencyInventoryRepository implements AgencyInventoryRepository
// on one DynamoDB item per agency, using conditional writes for the
// version check.
type DynamoAgencyInventoryRepository struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoAgencyInventoryRepository creates a DynamoDB backed inventory repository
func NewDynamoAgencyInventoryRepository(client *dynamodb.Client, table string) *DynamoAgencyInventoryRepository {
	return &DynamoAgencyInventoryRepository{client: client, table: table}
}

type ddbUsage struct {
	ResourcesUsed models.ResourceBundle `dynamodbav:"resources_used"`
	DateUsed      string                `dynamodbav:"date_used"`
	RequestID     string                `dynamodbav:"request_id"`
	Action        string                `dynamodbav:"action"`
}

type ddbInventory struct {
	AgencyID         string               `dynamodbav:"agency_id"`
	MaxResources     models.ResourceCount `dynamodbav:"max_resources"`
	CurrentResources models.ResourceCount `dynamodbav:"current_resources"`
	HeavyEquipment   []string             `dynamodbav:"heavy_equipment"`
	Locked           bool                 `dynamodbav:"locked"`
	LockReason       string               `dynamodbav:"lock_reason"`
	ResourceHistory  []ddbUsage           `dynamodbav:"resource_history"`
	Version          int64                `dynamodbav:"version"`
	UpdatedAt        string               `dynamodbav:"updated_at"`
}

func toDDB(inv *models.AgencyInventory) ddbInventory {
	history := make([]ddbUsage, 0, len(inv.ResourceHistory))
	for _, u := range inv.ResourceHistory {
		history = append(history, ddbUsage{
			ResourcesUsed: u.ResourcesUsed,
			DateUsed:      u.DateUsed.UTC().Format(time.RFC3339),
			RequestID:     u.RequestID,
			Action:        u.Action,
		})
	}
	return ddbInventory{
		AgencyID:         inv.AgencyID,
		MaxResources:     inv.MaxResources,
		CurrentResources: inv.CurrentResources,
		HeavyEquipment:   inv.HeavyEquipment,
		Locked:           inv.Locked,
		LockReason:       inv.LockReason,
		ResourceHistory:  history,
		Version:          inv.Version,
		UpdatedAt:        inv.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func fromDDB(di ddbInventory) *models.AgencyInventory {
	history := make([]models.ResourceUsage, 0, len(di.ResourceHistory))
	for _, u := range di.ResourceHistory {
		entry := models.ResourceUsage{
			ResourcesUsed: u.ResourcesUsed,
			RequestID:     u.RequestID,
			Action:        u.Action,
		}
		if t, err := time.Parse(time.RFC3339, u.DateUsed); err == nil {
			entry.DateUsed = t
		}
		history = append(history, entry)
	}
	inv := &models.AgencyInventory{
		AgencyID:         di.AgencyID,
		MaxResources:     di.MaxResources,
		CurrentResources: di.CurrentResources,
		HeavyEquipment:   di.HeavyEquipment,
		Locked:           di.Locked,
		LockReason:       di.LockReason,
		ResourceHistory:  history,
		Version:          di.Version,
	}
	if t, err := time.Parse(time.RFC3339, di.UpdatedAt); err == nil {
		inv.UpdatedAt = t
	}
	return inv
}

func (r *DynamoAgencyInventoryRepository) Get(ctx context.Context, agencyID string) (*models.AgencyInventory, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"agency_id": agencyID})
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.table,
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb GetItem failed: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var di ddbInventory
	if err := attributevalue.UnmarshalMap(out.Item, &di); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return fromDDB(di), nil
}

// Create writes a brand-new inventory record at version 1. Fails with
// ErrAlreadyExists when another writer created the record first.
func (r *DynamoAgencyInventoryRepository) Create(ctx context.Context, inv *models.AgencyInventory) error {
	inv.Version = 1
	inv.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(toDDB(inv))
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}

	cond := "attribute_not_exists(agency_id)"
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: &cond,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}

// Save writes inv back conditioned on the version it was read at.
// On success the in-memory record carries the incremented version.
func (r *DynamoAgencyInventoryRepository) Save(ctx context.Context, inv *models.AgencyInventory) error {
	readVersion := inv.Version
	inv.Version = readVersion + 1
	inv.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(toDDB(inv))
	if err != nil {
		inv.Version = readVersion
		return fmt.Errorf("marshal inventory: %w", err)
	}

	cond := "version = :expected"
	expectedAV, _ := attributevalue.Marshal(readVersion)

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: &cond,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": expectedAV,
		},
	})
	if err != nil {
		inv.Version = readVersion
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrVersionConflict
		}
		return fmt.Errorf("dynamodb PutItem failed: %w", err)
	}
	return nil
}
