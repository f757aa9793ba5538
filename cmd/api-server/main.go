package main

import (
	"log"
	"os"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/router"
	"support-chat-backend/internal/database"
	"support-chat-backend/internal/env"
	"support-chat-backend/internal/queue"
	"support-chat-backend/internal/realtime"
	"support-chat-backend/utils"
)

func main() {
	env.MustValidate()

	if env.Get("SERVICE_API_KEY") == "" {
		key := utils.GenerateServiceKey()
		os.Setenv("SERVICE_API_KEY", key)
		log.Printf("SERVICE_API_KEY not set; using generated key for this run: %s", key)
	}

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	gateway := realtime.NewGateway(realtime.NewHub(), nil)

	server := api.NewAPIServer(
		":81",
		queueManager,
		db,
		gateway,
		router.UtilsRoutes("/api/admin/v1"),
		router.AuthRoutes("/api/admin/v1"),
		router.ChatAdminRoutes("/api/admin/v1"),
		router.ChatPublicRoutes("/api/public/v1"),
		router.ChatInternalRoutes("/api/internal/v1"),
	)

	server.Run()
}
