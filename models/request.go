package models

import (
	"time"

	"github.com/google/uuid"
)

// Resource request statuses. A request is created pending, assigned by
// a coordinator, and finalized completed or rejected by the agency.
// Completed and rejected are terminal.
const (
	StatusPending   = "pending"
	StatusAssigned  = "assigned"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
)

// Agency response values.
const (
	ResponseAccept = "accept"
	ResponseReject = "reject"
)

// ResourceRequest is one fulfillment attempt. RequiredResources is an
// immutable snapshot taken at creation time and never recomputed.
type ResourceRequest struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PredictionID      string         `gorm:"not null;index" json:"prediction_id"`
	UserID            string         `gorm:"not null;index" json:"user_id"`
	RequiredResources ResourceBundle `gorm:"serializer:json;not null" json:"required_resources"`
	Status            string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AssignedAgency    *string        `gorm:"index" json:"assigned_agency,omitempty"`
	Latitude          float64        `gorm:"not null" json:"latitude"`
	Longitude         float64        `gorm:"not null" json:"longitude"`
	UserMessage       string         `json:"user_message,omitempty"`
	AdminMessage      string         `json:"admin_message,omitempty"`
	AgencyMessage     string         `json:"agency_message,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Transitions []RequestTransition `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"request_history"`
}

// RequestTransition is one append-only entry in a request's history.
type RequestTransition struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"request_id"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedBy string    `gorm:"not null" json:"updated_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Terminal reports whether the request can no longer transition.
func (r *ResourceRequest) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusRejected
}

// CreateRequestPayload creates a new resource request. When
// RequiredResources is nil the service sizes the bundle from the
// prediction's weather inputs; AssignedAgency is a routing preference
// recorded for the coordinator, not an assignment.
type CreateRequestPayload struct {
	PredictionID      string          `json:"prediction_id" binding:"required"`
	RequiredResources *ResourceBundle `json:"required_resources"`
	Latitude          float64         `json:"latitude" binding:"gte=-90,lte=90"`
	Longitude         float64         `json:"longitude" binding:"gte=-180,lte=180"`
	UserMessage       string          `json:"user_message"`
	AssignedAgency    *string         `json:"assigned_agency"`
}

// AssignRequestPayload routes a pending request to an agency.
type AssignRequestPayload struct {
	AgencyID     string `json:"agency_id" binding:"required"`
	AdminMessage string `json:"admin_message"`
}

// RespondRequestPayload is the assigned agency's accept or reject.
type RespondRequestPayload struct {
	Status  string `json:"status" binding:"required,oneof=accept reject"`
	Message string `json:"message"`
}

// SizePayload feeds the severity resource calculator directly.
type SizePayload struct {
	Temperature *float64 `json:"temperature" binding:"required"`
	WindSpeed   *float64 `json:"wind_speed" binding:"required,gte=0"`
	Humidity    *float64 `json:"humidity" binding:"required,gte=0,lte=100"`
}

// RequestListResponse pages through resource requests.
type RequestListResponse struct {
	Requests []ResourceRequest `json:"requests"`
	Meta     MetaData          `json:"meta"`
}

// MetaData is the pagination envelope.
type MetaData struct {
	Page          int   `json:"page"`
	Limit         int   `json:"limit"`
	TotalRequests int64 `json:"total_requests"`
	TotalPages    int64 `json:"total_pages"`
	HasMore       bool  `json:"has_more"`
}
