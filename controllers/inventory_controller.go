package controllers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zargham101/wildfire-backend/calculator"
	apperrors "github.com/zargham101/wildfire-backend/common/errors"
	"github.com/zargham101/wildfire-backend/middleware"
	"github.com/zargham101/wildfire-backend/models"
	"github.com/zargham101/wildfire-backend/services"
)

// InventoryController handles HTTP requests for agency resource pools
type InventoryController struct {
	service *services.InventoryService
}

func NewInventoryController(service *services.InventoryService) *InventoryController {
	return &InventoryController{service: service}
}

// Get returns the inventory projection for an agency
// GET /agencies/:agencyId/resources
func (ic *InventoryController) Get(c *gin.Context) {
	agencyID := c.Param("agencyId")
	if agencyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing agency ID"})
		return
	}

	inv, err := ic.service.Get(c.Request.Context(), agencyID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// Upsert creates or re-provisions an agency pool
// PUT /agencies/:agencyId/resources
func (ic *InventoryController) Upsert(c *gin.Context) {
	agencyID := c.Param("agencyId")
	if agencyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing agency ID"})
		return
	}

	// Agencies may only provision their own pool; coordinators any.
	role, _ := middleware.GetUserRole(c)
	principalID, _ := middleware.GetUserID(c)
	if role == services.RoleAgency && principalID != agencyID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	var payload models.UpsertAgencyResourcesRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	resp, err := ic.service.Upsert(c.Request.Context(), agencyID, &payload)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Unlock clears a shortfall lock after coordinator review
// POST /agencies/:agencyId/resources/unlock
func (ic *InventoryController) Unlock(c *gin.Context) {
	agencyID := c.Param("agencyId")
	if agencyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing agency ID"})
		return
	}

	reviewerID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var payload models.UnlockRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	inv, err := ic.service.Unlock(c.Request.Context(), reviewerID, agencyID, payload.Note)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// Size exposes the pure severity resource calculator
// POST /calculator/size
func (ic *InventoryController) Size(c *gin.Context) {
	var payload models.SizePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if math.IsNaN(*payload.Temperature) || math.IsNaN(*payload.WindSpeed) || math.IsNaN(*payload.Humidity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Weather inputs must be numeric"})
		return
	}

	sizing := calculator.Size(*payload.Temperature, *payload.WindSpeed, *payload.Humidity)
	c.JSON(http.StatusOK, sizing)
}
