package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/zargham101/wildfire-backend/controllers"
	"github.com/zargham101/wildfire-backend/middleware"
	"github.com/zargham101/wildfire-backend/services"
)

// Register wires all allocation subsystem routes
func Register(r *gin.Engine, reqCtrl *controllers.RequestController, invCtrl *controllers.InventoryController) {
	requests := r.Group("/requests")
	requests.Use(middleware.AuthMiddleware())
	{
		requests.POST("", reqCtrl.Create)
		requests.GET("", reqCtrl.List)
		requests.GET("/:id", reqCtrl.Get)
		requests.PATCH("/:id/assign", middleware.RequireRole(services.RoleCoordinator), reqCtrl.Assign)
		requests.PATCH("/:id/respond", middleware.RequireRole(services.RoleAgency), reqCtrl.Respond)
	}

	agencies := r.Group("/agencies")
	agencies.Use(middleware.AuthMiddleware())
	{
		agencies.GET("/:agencyId/resources", invCtrl.Get)
		agencies.PUT("/:agencyId/resources",
			middleware.RequireRole(services.RoleCoordinator, services.RoleAgency), invCtrl.Upsert)
		agencies.POST("/:agencyId/resources/unlock",
			middleware.RequireRole(services.RoleCoordinator), invCtrl.Unlock)
	}

	calc := r.Group("/calculator")
	calc.Use(middleware.AuthMiddleware())
	{
		calc.POST("/size", invCtrl.Size)
	}
}
