package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/zargham101/wildfire-backend/common/errors"
	"github.com/zargham101/wildfire-backend/kafka"
	"github.com/zargham101/wildfire-backend/models"
	"github.com/zargham101/wildfire-backend/repository"
)

// maxAllocationRetries bounds how many times a check-then-deduct is
// replayed after losing a version race against another writer.
const maxAllocationRetries = 5

// AllocationService runs the one operation that touches a request and
// an agency pool together: checking an agency's live inventory against
// a required bundle and deducting on success or locking on failure.
// Every write goes through the repository's compare-and-swap, so
// concurrent attempts against one agency serialize through
// retry-on-conflict and no two attempts can deduct from the same
// stale snapshot.
type AllocationService struct {
	inventories repository.AgencyInventoryRepository
	producer    kafka.ProducerAPI
	logger      *zap.Logger
}

func NewAllocationService(inventories repository.AgencyInventoryRepository, producer kafka.ProducerAPI, logger *zap.Logger) *AllocationService {
	return &AllocationService{
		inventories: inventories,
		producer:    producer,
		logger:      logger,
	}
}

// Attempt checks and deducts required from the agency's pool. On
// success the deduction and a ledger entry are committed atomically
// and the updated inventory is returned. On shortfall the agency is
// locked (pool otherwise untouched) and an insufficient-resources
// error carrying the shortfall and the lock is returned, so the caller
// keeps the request assigned for reassignment.
func (s *AllocationService) Attempt(ctx context.Context, agencyID, requestID string, required models.ResourceBundle) (*models.AgencyInventory, error) {
	for attempt := 0; attempt < maxAllocationRetries; attempt++ {
		inv, err := s.inventories.Get(ctx, agencyID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, apperrors.NewNotFound(fmt.Sprintf("agency %s has no inventory record", agencyID))
			}
			return nil, apperrors.NewPersistence("failed to load agency inventory", err)
		}

		// A deduct entry for this request means a prior attempt already
		// committed and only the caller's follow-up failed. Replay
		// success instead of deducting again, even if the agency has
		// been locked since.
		if hasDeduction(inv, requestID) {
			s.logger.Info("deduction already committed, replaying",
				zap.String("agency_id", agencyID),
				zap.String("request_id", requestID),
			)
			return inv, nil
		}

		if inv.Locked {
			return nil, apperrors.NewInsufficientResources(fmt.Sprintf(
				"agency %s is locked and cannot accept requests: %s", agencyID, inv.LockReason))
		}

		reason := shortfallReason(inv, required)
		if reason != "" {
			inv.Locked = true
			inv.LockReason = reason
			if err := s.inventories.Save(ctx, inv); err != nil {
				if err == repository.ErrVersionConflict {
					continue
				}
				return nil, apperrors.NewPersistence("failed to lock agency inventory", err)
			}

			s.logger.Warn("agency locked on shortfall",
				zap.String("agency_id", agencyID),
				zap.String("request_id", requestID),
				zap.String("reason", reason),
			)
			s.emit(ctx, kafka.Event{
				Type:      kafka.EventAgencyLocked,
				RequestID: requestID,
				AgencyID:  agencyID,
				Reason:    reason,
			})

			return nil, apperrors.NewInsufficientResources(fmt.Sprintf(
				"%s; agency %s has been locked pending replenishment", reason, agencyID))
		}

		inv.CurrentResources = inv.CurrentResources.Minus(required.Counts())
		inv.ResourceHistory = append(inv.ResourceHistory, models.ResourceUsage{
			ResourcesUsed: required,
			DateUsed:      time.Now().UTC(),
			RequestID:     requestID,
			Action:        models.HistoryActionDeduct,
		})

		if err := s.inventories.Save(ctx, inv); err != nil {
			if err == repository.ErrVersionConflict {
				continue
			}
			return nil, apperrors.NewPersistence("failed to persist resource deduction", err)
		}

		s.logger.Info("resources deducted",
			zap.String("agency_id", agencyID),
			zap.String("request_id", requestID),
			zap.Int("firefighters", required.Firefighters),
			zap.Int("firetrucks", required.Firetrucks),
			zap.Int("helicopters", required.Helicopters),
			zap.Int("commanders", required.Commanders),
		)
		return inv, nil
	}

	return nil, apperrors.NewPersistence(
		fmt.Sprintf("allocation for agency %s did not converge after %d retries", agencyID, maxAllocationRetries),
		repository.ErrVersionConflict)
}

func (s *AllocationService) emit(ctx context.Context, evt kafka.Event) {
	if s.producer == nil {
		return
	}
	// Best-effort: the producer logs its own failures.
	_ = s.producer.PublishEvent(ctx, evt)
}

// hasDeduction reports whether the ledger already holds a committed
// deduct entry for the request.
func hasDeduction(inv *models.AgencyInventory, requestID string) bool {
	for _, entry := range inv.ResourceHistory {
		if entry.Action == models.HistoryActionDeduct && entry.RequestID == requestID {
			return true
		}
	}
	return false
}

// shortfallReason describes every failing check, countable and
// equipment alike. Both checks always run; an empty string means the
// attempt can proceed.
func shortfallReason(inv *models.AgencyInventory, required models.ResourceBundle) string {
	var parts []string

	cur := inv.CurrentResources.PerCategory()
	req := required.Counts().PerCategory()
	for _, cat := range []string{
		models.CategoryFirefighters,
		models.CategoryFiretrucks,
		models.CategoryHelicopters,
		models.CategoryCommanders,
	} {
		if cur[cat] < req[cat] {
			parts = append(parts, fmt.Sprintf("insufficient %s (available %d, required %d)", cat, cur[cat], req[cat]))
		}
	}

	if missing := inv.MissingEquipment(required.HeavyEquipment); len(missing) > 0 {
		parts = append(parts, "missing heavy equipment: "+strings.Join(missing, ", "))
	}

	return strings.Join(parts, "; ")
}
