package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	handler "invoice-reconciliation-backend/internal/handlers"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/ingest"
	service "invoice-reconciliation-backend/internal/services/reconciliation"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB) {
	invoiceRepo := repository.NewInvoiceRepository(db)
	reconService := service.NewService(db)
	normalizer := ingest.NewNormalizer(db)
	importer := ingest.NewInvoiceImporter(db)

	reconHandler := handler.NewReconciliationHandler(reconService, normalizer, importer, invoiceRepo)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	tenant := api.Group("/tenants/:tenantId")

	tenant.POST("/transactions/import", reconHandler.ImportTransactions)

	tenant.GET("/invoices", reconHandler.SearchInvoices)
	tenant.POST("/invoices", reconHandler.CreateInvoice)
	tenant.POST("/invoices/import", reconHandler.ImportInvoices)

	tenant.POST("/matching/run", reconHandler.RunMatching)
	tenant.GET("/suggestions", reconHandler.ListSuggestions)

	payments := tenant.Group("/payments")
	{
		payments.POST("/:id/approve", reconHandler.Approve)
		payments.POST("/:id/reject", reconHandler.Reject)
		payments.POST("/:id/rematch", reconHandler.ReMatch)
		payments.POST("/bulk-approve", reconHandler.BulkApprove)
	}

	tenant.GET("/stats", reconHandler.Stats)
	tenant.GET("/settings", reconHandler.GetSettings)
	tenant.PUT("/settings", reconHandler.PutSettings)
}
