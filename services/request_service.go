package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zargham101/wildfire-backend/calculator"
	apperrors "github.com/zargham101/wildfire-backend/common/errors"
	"github.com/zargham101/wildfire-backend/kafka"
	"github.com/zargham101/wildfire-backend/models"
	"github.com/zargham101/wildfire-backend/repository"
)

// ResponseCache records respond outcomes per request so retried calls
// (timeout, unknown outcome) are idempotent.
type ResponseCache interface {
	Get(ctx context.Context, requestID string) (string, error)
	Set(ctx context.Context, requestID, outcome string) error
}

// RequestService owns the resource request state machine:
// pending -> assigned -> {completed | rejected}. Inventory effects
// happen only through AllocationService on accept.
type RequestService struct {
	requests    repository.RequestRepository
	predictions repository.PredictionRepository
	inventories *InventoryService
	allocator   *AllocationService
	cache       ResponseCache
	producer    kafka.ProducerAPI
	logger      *zap.Logger
}

func NewRequestService(
	requests repository.RequestRepository,
	predictions repository.PredictionRepository,
	inventories *InventoryService,
	allocator *AllocationService,
	cache ResponseCache,
	producer kafka.ProducerAPI,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requests:    requests,
		predictions: predictions,
		inventories: inventories,
		allocator:   allocator,
		cache:       cache,
		producer:    producer,
		logger:      logger,
	}
}

// Create registers a new resource request in pending state. The
// required bundle is validated (or sized from the prediction's weather
// inputs when omitted) and snapshotted immutably on the request.
func (s *RequestService) Create(ctx context.Context, userID string, p *models.CreateRequestPayload) (*models.ResourceRequest, error) {
	prediction, err := s.predictions.FindByID(ctx, p.PredictionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.NewNotFound(fmt.Sprintf("prediction %s not found", p.PredictionID))
		}
		return nil, apperrors.NewPersistence("failed to resolve prediction", err)
	}

	var required models.ResourceBundle
	if p.RequiredResources != nil {
		required = *p.RequiredResources
		if err := required.Validate(); err != nil {
			return nil, apperrors.NewValidation(err.Error())
		}
		if required.IsZero() {
			return nil, apperrors.NewValidation("required resources must not be empty")
		}
	} else {
		if math.IsNaN(prediction.Temperature) || math.IsNaN(prediction.WindSpeed) || math.IsNaN(prediction.Humidity) {
			return nil, apperrors.NewValidation("prediction weather inputs are not numeric")
		}
		required = calculator.Size(prediction.Temperature, prediction.WindSpeed, prediction.Humidity).Immediate
	}

	req := &models.ResourceRequest{
		ID:                uuid.New(),
		PredictionID:      p.PredictionID,
		UserID:            userID,
		RequiredResources: required,
		Status:            models.StatusPending,
		AssignedAgency:    p.AssignedAgency,
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
		UserMessage:       p.UserMessage,
		Transitions: []models.RequestTransition{
			{
				ID:        uuid.New(),
				Status:    models.StatusPending,
				Message:   p.UserMessage,
				UpdatedBy: userID,
			},
		},
	}
	req.Transitions[0].RequestID = req.ID

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.NewPersistence("failed to create request", err)
	}

	s.logger.Info("resource request created",
		zap.String("request_id", req.ID.String()),
		zap.String("user_id", userID),
		zap.String("prediction_id", p.PredictionID),
	)
	return req, nil
}

// Assign routes a pending request to an agency. No inventory side
// effects, but assignment to a locked agency is rejected so the
// coordinator never offers work to an agency that cannot take it.
func (s *RequestService) Assign(ctx context.Context, coordinatorID string, requestID uuid.UUID, p *models.AssignRequestPayload) (*models.ResourceRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.NewNotFound(fmt.Sprintf("request %s not found", requestID))
		}
		return nil, apperrors.NewPersistence("failed to load request", err)
	}

	if req.Status != models.StatusPending {
		return nil, apperrors.NewConflict(fmt.Sprintf("request %s is %s, not pending", requestID, req.Status))
	}

	inv, err := s.inventories.Get(ctx, p.AgencyID)
	if err != nil {
		return nil, err
	}
	if inv.Locked {
		return nil, apperrors.NewConflict(fmt.Sprintf(
			"agency %s is locked and cannot be assigned: %s", p.AgencyID, inv.LockReason))
	}

	agencyID := p.AgencyID
	req.Status = models.StatusAssigned
	req.AssignedAgency = &agencyID
	req.AdminMessage = p.AdminMessage

	if err := s.requests.Update(ctx, req); err != nil {
		return nil, apperrors.NewPersistence("failed to assign request", err)
	}
	s.appendTransition(ctx, req, models.StatusAssigned, p.AdminMessage, coordinatorID)
	s.emit(ctx, kafka.Event{Type: kafka.EventRequestAssigned, RequestID: req.ID.String(), AgencyID: agencyID})

	s.logger.Info("request assigned",
		zap.String("request_id", req.ID.String()),
		zap.String("agency_id", agencyID),
		zap.String("coordinator", coordinatorID),
	)
	return req, nil
}

// Respond records the assigned agency's accept or reject. Accept
// delegates to AllocationService; the request reaches completed only
// after the deduction committed, and stays assigned when it did not.
func (s *RequestService) Respond(ctx context.Context, agencyID string, requestID uuid.UUID, p *models.RespondRequestPayload) (*models.ResourceRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.NewNotFound(fmt.Sprintf("request %s not found", requestID))
		}
		return nil, apperrors.NewPersistence("failed to load request", err)
	}

	// Idempotent retry: a terminal request whose recorded outcome
	// matches this agency's retried action returns that outcome instead
	// of a conflict. A contradicting retry (reject after completed)
	// still conflicts.
	if req.Terminal() {
		if outcome := s.cachedOutcome(ctx, requestID); outcome != "" &&
			outcome == terminalStatusFor(p.Status) &&
			req.AssignedAgency != nil && *req.AssignedAgency == agencyID {
			s.logger.Info("respond replayed from recorded outcome",
				zap.String("request_id", requestID.String()),
				zap.String("outcome", outcome),
			)
			return req, nil
		}
		return nil, apperrors.NewConflict(fmt.Sprintf("request %s is already %s", requestID, req.Status))
	}

	if req.Status != models.StatusAssigned {
		return nil, apperrors.NewConflict(fmt.Sprintf("request %s is %s, not awaiting a response", requestID, req.Status))
	}
	if req.AssignedAgency == nil || *req.AssignedAgency != agencyID {
		return nil, apperrors.NewConflict(fmt.Sprintf("request %s is not assigned to agency %s", requestID, agencyID))
	}

	if p.Status == models.ResponseReject {
		req.Status = models.StatusRejected
		req.AgencyMessage = p.Message
		if err := s.requests.Update(ctx, req); err != nil {
			return nil, apperrors.NewPersistence("failed to reject request", err)
		}
		s.appendTransition(ctx, req, models.StatusRejected, p.Message, agencyID)
		s.recordOutcome(ctx, requestID, models.StatusRejected)
		s.emit(ctx, kafka.Event{Type: kafka.EventRequestRejected, RequestID: req.ID.String(), AgencyID: agencyID})

		s.logger.Info("request rejected by agency",
			zap.String("request_id", req.ID.String()),
			zap.String("agency_id", agencyID),
		)
		return req, nil
	}

	// Accept: the request is finalized only after the deduction
	// committed. On shortfall it stays assigned so the coordinator can
	// reassign, and the failure (including the lock) is surfaced.
	if _, err := s.allocator.Attempt(ctx, agencyID, req.ID.String(), req.RequiredResources); err != nil {
		if apperrors.IsInsufficient(err) {
			s.appendTransition(ctx, req, models.StatusAssigned, err.Error(), agencyID)
		}
		return nil, err
	}

	req.Status = models.StatusCompleted
	req.AgencyMessage = p.Message
	if err := s.requests.Update(ctx, req); err != nil {
		// The deduction is committed; the ledger entry ties it to this
		// request even though the status write failed.
		return nil, apperrors.NewPersistence("resources deducted but request finalization failed", err)
	}
	s.appendTransition(ctx, req, models.StatusCompleted, p.Message, agencyID)
	s.recordOutcome(ctx, requestID, models.StatusCompleted)
	s.emit(ctx, kafka.Event{Type: kafka.EventRequestCompleted, RequestID: req.ID.String(), AgencyID: agencyID})

	s.logger.Info("request completed",
		zap.String("request_id", req.ID.String()),
		zap.String("agency_id", agencyID),
	)
	return req, nil
}

// GetByID returns one request. Requesters see their own requests;
// coordinators see all; agencies see requests assigned to them.
func (s *RequestService) GetByID(ctx context.Context, principalID, role string, requestID uuid.UUID) (*models.ResourceRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperrors.NewNotFound(fmt.Sprintf("request %s not found", requestID))
		}
		return nil, apperrors.NewPersistence("failed to load request", err)
	}

	switch role {
	case RoleCoordinator:
		return req, nil
	case RoleAgency:
		if req.AssignedAgency != nil && *req.AssignedAgency == principalID {
			return req, nil
		}
	default:
		if req.UserID == principalID {
			return req, nil
		}
	}
	return nil, apperrors.NewNotFound(fmt.Sprintf("request %s not found", requestID))
}

// List pages requests: all of them for coordinators, the principal's
// own otherwise.
func (s *RequestService) List(ctx context.Context, principalID, role string, page, limit int) (*models.RequestListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var (
		requests []models.ResourceRequest
		total    int64
		err      error
	)
	if role == RoleCoordinator {
		requests, total, err = s.requests.FindAll(ctx, page, limit)
	} else {
		requests, total, err = s.requests.FindByUserID(ctx, principalID, page, limit)
	}
	if err != nil {
		return nil, apperrors.NewPersistence("failed to list requests", err)
	}

	return &models.RequestListResponse{
		Requests: requests,
		Meta: models.MetaData{
			Page:          page,
			Limit:         limit,
			TotalRequests: total,
			TotalPages:    totalPages(total, limit),
			HasMore:       total > int64(page*limit),
		},
	}, nil
}

func (s *RequestService) appendTransition(ctx context.Context, req *models.ResourceRequest, status, message, updatedBy string) {
	tr := &models.RequestTransition{
		ID:        uuid.New(),
		RequestID: req.ID,
		Status:    status,
		Message:   message,
		UpdatedBy: updatedBy,
	}
	if err := s.requests.AppendTransition(ctx, tr); err != nil {
		s.logger.Warn("failed to append request transition",
			zap.String("request_id", req.ID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}

func (s *RequestService) cachedOutcome(ctx context.Context, requestID uuid.UUID) string {
	if s.cache == nil {
		return ""
	}
	outcome, err := s.cache.Get(ctx, requestID.String())
	if err != nil {
		s.logger.Warn("response cache read failed", zap.Error(err))
		return ""
	}
	return outcome
}

func (s *RequestService) recordOutcome(ctx context.Context, requestID uuid.UUID, outcome string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, requestID.String(), outcome); err != nil {
		s.logger.Warn("response cache write failed", zap.Error(err))
	}
}

func (s *RequestService) emit(ctx context.Context, evt kafka.Event) {
	if s.producer == nil {
		return
	}
	_ = s.producer.PublishEvent(ctx, evt)
}

// terminalStatusFor maps an agency response to the terminal status it
// would have produced.
func terminalStatusFor(response string) string {
	if response == models.ResponseAccept {
		return models.StatusCompleted
	}
	return models.StatusRejected
}

func totalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
