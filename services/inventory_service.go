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

// InventoryService handles agency pool provisioning: reads, upserts,
// and the explicit unlock review. Allocation-time mutation lives in
// AllocationService; both go through the same versioned writes so a
// re-provisioning cannot interleave with an in-flight attempt.
type InventoryService struct {
	repo     repository.AgencyInventoryRepository
	producer kafka.ProducerAPI
	logger   *zap.Logger
}

func NewInventoryService(repo repository.AgencyInventoryRepository, producer kafka.ProducerAPI, logger *zap.Logger) *InventoryService {
	return &InventoryService{repo: repo, producer: producer, logger: logger}
}

// Get returns the agency's inventory, creating it lazily with the
// default pool on first reference.
func (s *InventoryService) Get(ctx context.Context, agencyID string) (*models.AgencyInventory, error) {
	inv, err := s.repo.Get(ctx, agencyID)
	if err == nil {
		return inv, nil
	}
	if err != repository.ErrNotFound {
		return nil, apperrors.NewPersistence("failed to load agency inventory", err)
	}

	inv = models.NewAgencyInventory(agencyID, models.DefaultMaxResources, nil)
	if err := s.repo.Create(ctx, inv); err != nil {
		if err == repository.ErrAlreadyExists {
			// Another caller created it first; the stored record wins.
			inv, err = s.repo.Get(ctx, agencyID)
			if err != nil {
				return nil, apperrors.NewPersistence("failed to load agency inventory", err)
			}
			return inv, nil
		}
		return nil, apperrors.NewPersistence("failed to create agency inventory", err)
	}

	s.logger.Info("agency inventory created with default pool", zap.String("agency_id", agencyID))
	return inv, nil
}

// Upsert creates an agency pool or re-provisions an existing one. On
// update the per-category max delta is applied to the current pool,
// preserving whatever is checked out; shrinking below the current
// allocation clamps at zero and reports the clamped categories as
// warnings instead of persisting a negative balance. Raising any
// category on a locked agency clears the lock (replenishment).
func (s *InventoryService) Upsert(ctx context.Context, agencyID string, req *models.UpsertAgencyResourcesRequest) (*models.AgencyInventoryResponse, error) {
	for attempt := 0; attempt < maxAllocationRetries; attempt++ {
		inv, err := s.repo.Get(ctx, agencyID)
		if err != nil && err != repository.ErrNotFound {
			return nil, apperrors.NewPersistence("failed to load agency inventory", err)
		}

		if err == repository.ErrNotFound {
			inv = models.NewAgencyInventory(agencyID, req.MaxResources, req.HeavyEquipment)
			if err := s.repo.Create(ctx, inv); err != nil {
				if err == repository.ErrAlreadyExists {
					continue
				}
				return nil, apperrors.NewPersistence("failed to create agency inventory", err)
			}
			s.logger.Info("agency inventory provisioned",
				zap.String("agency_id", agencyID),
				zap.Int("firefighters", req.MaxResources.Firefighters),
				zap.Int("firetrucks", req.MaxResources.Firetrucks),
				zap.Int("helicopters", req.MaxResources.Helicopters),
				zap.Int("commanders", req.MaxResources.Commanders),
			)
			return &models.AgencyInventoryResponse{Inventory: inv}, nil
		}

		delta := req.MaxResources.Minus(inv.MaxResources)
		current, clamped := inv.CurrentResources.Plus(delta).ClampNonNegative()

		var warnings []string
		if len(clamped) > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"max resources shrunk below current allocation; clamped to zero: %s",
				strings.Join(clamped, ", ")))
		}

		inv.MaxResources = req.MaxResources
		inv.CurrentResources = current
		inv.HeavyEquipment = req.HeavyEquipment

		raised := delta.Firefighters > 0 || delta.Firetrucks > 0 ||
			delta.Helicopters > 0 || delta.Commanders > 0
		unlocked := false
		if inv.Locked && raised {
			inv.Locked = false
			inv.LockReason = ""
			unlocked = true
		}

		if err := s.repo.Save(ctx, inv); err != nil {
			if err == repository.ErrVersionConflict {
				continue
			}
			return nil, apperrors.NewPersistence("failed to update agency inventory", err)
		}

		if unlocked {
			s.logger.Info("agency unlocked by replenishment", zap.String("agency_id", agencyID))
			s.emit(ctx, kafka.Event{Type: kafka.EventAgencyUnlocked, AgencyID: agencyID, Reason: "max resources raised"})
		}
		for _, w := range warnings {
			s.logger.Warn("inventory upsert warning", zap.String("agency_id", agencyID), zap.String("warning", w))
		}

		return &models.AgencyInventoryResponse{Inventory: inv, Warnings: warnings}, nil
	}

	return nil, apperrors.NewPersistence(
		fmt.Sprintf("inventory upsert for agency %s did not converge", agencyID),
		repository.ErrVersionConflict)
}

// Unlock is the explicit coordinator review that clears a shortfall
// lock without changing the pool. The review is recorded in the
// history ledger with a zero bundle.
func (s *InventoryService) Unlock(ctx context.Context, reviewerID, agencyID, note string) (*models.AgencyInventory, error) {
	for attempt := 0; attempt < maxAllocationRetries; attempt++ {
		inv, err := s.repo.Get(ctx, agencyID)
		if err != nil {
			if err == repository.ErrNotFound {
				return nil, apperrors.NewNotFound(fmt.Sprintf("agency %s has no inventory record", agencyID))
			}
			return nil, apperrors.NewPersistence("failed to load agency inventory", err)
		}

		if !inv.Locked {
			return nil, apperrors.NewConflict(fmt.Sprintf("agency %s is not locked", agencyID))
		}

		inv.Locked = false
		inv.LockReason = ""
		inv.ResourceHistory = append(inv.ResourceHistory, models.ResourceUsage{
			DateUsed: time.Now().UTC(),
			Action:   models.HistoryActionUnlock,
		})

		if err := s.repo.Save(ctx, inv); err != nil {
			if err == repository.ErrVersionConflict {
				continue
			}
			return nil, apperrors.NewPersistence("failed to unlock agency inventory", err)
		}

		s.logger.Info("agency unlocked by review",
			zap.String("agency_id", agencyID),
			zap.String("reviewer", reviewerID),
		)
		s.emit(ctx, kafka.Event{Type: kafka.EventAgencyUnlocked, AgencyID: agencyID, Reason: note})
		return inv, nil
	}

	return nil, apperrors.NewPersistence(
		fmt.Sprintf("unlock for agency %s did not converge", agencyID),
		repository.ErrVersionConflict)
}

func (s *InventoryService) emit(ctx context.Context, evt kafka.Event) {
	if s.producer == nil {
		return
	}
	_ = s.producer.PublishEvent(ctx, evt)
}
