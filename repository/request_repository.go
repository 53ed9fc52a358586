package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zargham101/wildfire-backend/models"
)

// RequestRepository defines the interface for resource request data access
type RequestRepository interface {
	Create(ctx context.Context, req *models.ResourceRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ResourceRequest, error)
	FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.ResourceRequest, int64, error)
	FindAll(ctx context.Context, page, limit int) ([]models.ResourceRequest, int64, error)
	Update(ctx context.Context, req *models.ResourceRequest) error
	AppendTransition(ctx context.Context, tr *models.RequestTransition) error
}

// GormRequestRepository implements RequestRepository using GORM
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new instance of GormRequestRepository
func NewGormRequestRepository(db *gorm.DB) RequestRepository {
	return &GormRequestRepository{db: db}
}

// Create creates a new resource request with its initial transition
func (r *GormRequestRepository) Create(ctx context.Context, req *models.ResourceRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// FindByID retrieves a request with its transition history
func (r *GormRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ResourceRequest, error) {
	var req models.ResourceRequest
	err := r.db.WithContext(ctx).
		Preload("Transitions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindByUserID retrieves requests for a specific user with pagination
func (r *GormRequestRepository) FindByUserID(ctx context.Context, userID string, page, limit int) ([]models.ResourceRequest, int64, error) {
	var requests []models.ResourceRequest
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.ResourceRequest{}).
		Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Transitions").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// FindAll retrieves all requests with pagination
func (r *GormRequestRepository) FindAll(ctx context.Context, page, limit int) ([]models.ResourceRequest, int64, error) {
	var requests []models.ResourceRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ResourceRequest{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Transitions").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// Update persists request field changes. Transitions are append-only
// and written separately via AppendTransition.
func (r *GormRequestRepository) Update(ctx context.Context, req *models.ResourceRequest) error {
	return r.db.WithContext(ctx).Omit("Transitions").Save(req).Error
}

// AppendTransition writes one history entry
func (r *GormRequestRepository) AppendTransition(ctx context.Context, tr *models.RequestTransition) error {
	return r.db.WithContext(ctx).Create(tr).Error
}
