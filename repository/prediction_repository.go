package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zargham101/wildfire-backend/models"
)

// PredictionRepository resolves prediction identifiers against the
// severity model's store. Read-only: predictions are owned by an
// external collaborator.
type PredictionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Prediction, error)
}

// MongoPredictionRepository implements PredictionRepository over the
// prediction collection.
type MongoPredictionRepository struct {
	coll *mongo.Collection
}

func NewMongoPredictionRepository(db *mongo.Database, collection string) *MongoPredictionRepository {
	return &MongoPredictionRepository{coll: db.Collection(collection)}
}

func (r *MongoPredictionRepository) FindByID(ctx context.Context, id string) (*models.Prediction, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// Malformed IDs cannot resolve to a prediction.
		return nil, ErrNotFound
	}

	var doc struct {
		ID          primitive.ObjectID `bson:"_id"`
		Temperature float64            `bson:"temperature"`
		WindSpeed   float64            `bson:"wind_speed"`
		Humidity    float64            `bson:"humidity"`
		Severity    string             `bson:"severity,omitempty"`
	}

	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo FindOne failed: %w", err)
	}

	return &models.Prediction{
		ID:          doc.ID.Hex(),
		Temperature: doc.Temperature,
		WindSpeed:   doc.WindSpeed,
		Humidity:    doc.Humidity,
		Severity:    doc.Severity,
	}, nil
}
