package main

import (
	"log"
	"strings"
	"time"

	"invoice-reconciliation-backend/internal/config"
	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	db := config.InitDB()

	db.AutoMigrate(
		&models.Invoice{},
		&models.Transaction{},
		&models.Payment{},
		&models.Suggestion{},
		&models.Allocation{},
		&models.TenantSettings{},
	)

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(config.Getenv("CORS_ORIGINS", "http://localhost:3000"), ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, db)

	r.Run(":" + config.Getenv("PORT", "8080"))
}
