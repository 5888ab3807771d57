package handler

import (
	"github.com/kudzimusar/pay-pass-scan-and-go-sub000/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter wires the HTTP surface.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/register", h.RegisterUser)
			account.GET("/detail", h.GetUser)
			account.GET("/balance", h.GetBalance)
			account.GET("/list", h.ListAccounts)
			account.GET("/transactions", h.ListTransactions)
			account.POST("/topup", h.Topup)
		}

		operation := api.Group("/operation")
		{
			operation.POST("/execute", h.ExecuteOperation)
		}

		transfer := api.Group("/transfer")
		{
			transfer.POST("/execute", h.Transfer)
		}

		crossborder := api.Group("/crossborder")
		{
			crossborder.POST("/initiate", h.InitiateCrossBorder)
			crossborder.POST("/complete", h.CompleteCrossBorder)
			crossborder.GET("/detail", h.GetCrossBorder)
			crossborder.GET("/list", h.ListCrossBorder)
		}

		compliance := api.Group("/compliance")
		{
			compliance.POST("/approve", h.ApproveHold)
			compliance.POST("/reject", h.RejectHold)
			compliance.POST("/request-documents", h.RequestDocuments)
		}

		riskGroup := api.Group("/risk")
		{
			riskGroup.POST("/assess", h.Assess)
		}

		reconcile := api.Group("/reconcile")
		{
			reconcile.GET("/validate", h.ValidateBalance)
			reconcile.GET("/user", h.ValidateUser)
		}

		rates := api.Group("/rates")
		{
			rates.GET("/list", h.ListRates)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
