package models

import "time"

// Prediction is a read-only projection of the wildfire-severity
// model's output. Only the weather inputs are consumed here; the
// model itself is an external collaborator.
type Prediction struct {
	ID          string    `json:"id" bson:"-"`
	Temperature float64   `json:"temperature" bson:"temperature"`
	WindSpeed   float64   `json:"wind_speed" bson:"wind_speed"`
	Humidity    float64   `json:"humidity" bson:"humidity"`
	Severity    string    `json:"severity,omitempty" bson:"severity,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty" bson:"created_at,omitempty"`
}
