package models

import "time"

// History ledger actions.
const (
	HistoryActionDeduct = "deduct"
	HistoryActionUnlock = "unlock"
)

// DefaultMaxResources is the pool an agency starts with when its
// inventory record is created lazily on first reference.
var DefaultMaxResources = ResourceCount{
	Firefighters: 50,
	Firetrucks:   10,
	Helicopters:  2,
	Commanders:   5,
}

// ResourceUsage is one append-only ledger entry. Entries are written
// once per committed deduction (or unlock review) and never edited.
type ResourceUsage struct {
	ResourcesUsed ResourceBundle `json:"resources_used"`
	DateUsed      time.Time      `json:"date_used"`
	RequestID     string         `json:"request_id"`
	Action        string         `json:"action"`
}

// AgencyInventory is the durable record of one agency's resource pool.
// CurrentResources stays within [0, MaxResources] per category at
// every committed state; Version is the optimistic-concurrency stamp
// checked on every write.
type AgencyInventory struct {
	AgencyID         string          `json:"agency_id"`
	MaxResources     ResourceCount   `json:"max_resources"`
	CurrentResources ResourceCount   `json:"current_resources"`
	HeavyEquipment   []string        `json:"heavy_equipment"`
	Locked           bool            `json:"locked"`
	LockReason       string          `json:"lock_reason,omitempty"`
	ResourceHistory  []ResourceUsage `json:"resource_history"`
	Version          int64           `json:"version"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MissingEquipment returns the requested equipment items the agency
// does not own, in request order.
func (a *AgencyInventory) MissingEquipment(requested []string) []string {
	if len(requested) == 0 {
		return nil
	}
	owned := make(map[string]struct{}, len(a.HeavyEquipment))
	for _, item := range a.HeavyEquipment {
		owned[item] = struct{}{}
	}
	var missing []string
	for _, item := range requested {
		if _, ok := owned[item]; !ok {
			missing = append(missing, item)
		}
	}
	return missing
}

// NewAgencyInventory creates a full-pool inventory record.
func NewAgencyInventory(agencyID string, max ResourceCount, equipment []string) *AgencyInventory {
	return &AgencyInventory{
		AgencyID:         agencyID,
		MaxResources:     max,
		CurrentResources: max,
		HeavyEquipment:   equipment,
		ResourceHistory:  []ResourceUsage{},
		UpdatedAt:        time.Now().UTC(),
	}
}

// UpsertAgencyResourcesRequest creates or re-provisions an agency pool.
type UpsertAgencyResourcesRequest struct {
	MaxResources   ResourceCount `json:"max_resources" binding:"required"`
	HeavyEquipment []string      `json:"heavy_equipment"`
}

// UnlockRequest carries the coordinator's review note.
type UnlockRequest struct {
	Note string `json:"note"`
}

// AgencyInventoryResponse is the inventory projection plus any
// warnings produced by the operation (e.g. clamped categories).
type AgencyInventoryResponse struct {
	Inventory *AgencyInventory `json:"inventory"`
	Warnings  []string         `json:"warnings,omitempty"`
}
