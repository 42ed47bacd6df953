// handlers/reward_routes.go
package handlers

import (
	"eco-rewards-service/middleware"
	"eco-rewards-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, rewardService *services.RewardService, authClient *services.AuthServiceClient) {
	// 🔓 Public catalog — gateway auth only
	app.Get("/rewards", rewardService.GetCatalog)

	// 🔐 Secured routes — require user context
	secured := app.Group("/user", middleware.UserContextMiddleware())

	secured.Post("/rewards/:id/redeem", rewardService.RedeemReward)
	secured.Get("/rewards", rewardService.GetRedemptionHistory)

	// SSE takes credentials in the query string (EventSource cannot set headers)
	app.Get("/user/rewards/stream", middleware.SSEAuthMiddleware(authClient), rewardService.StreamUserRewardsSSE)

	// 🔐 Admin catalog management
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.AdminOnlyMiddleware())

	admin.Get("/rewards", rewardService.GetAllRewards)
	admin.Post("/rewards", rewardService.CreateReward)
	admin.Put("/rewards/:id", rewardService.UpdateReward)
	admin.Delete("/rewards/:id", rewardService.DeleteReward)
	admin.Post("/rewards/:id/image", rewardService.UploadRewardImage)
}
