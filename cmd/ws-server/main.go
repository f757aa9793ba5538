package main

import (
	"log"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/router"
	"support-chat-backend/internal/database"
	"support-chat-backend/internal/env"
	"support-chat-backend/internal/queue"
	"support-chat-backend/internal/realtime"
	handoffservice "support-chat-backend/internal/service/handoff"
)

func main() {
	env.MustValidate()

	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	hub := realtime.NewHub()
	gateway := realtime.NewGateway(hub, nil)

	service := handoffservice.New(db, gateway.Publisher())
	service.SetConnectedCounter(gateway.Presence().Count)
	gateway.SetService(service)

	go gateway.Run()

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		gateway,
		router.UtilsRoutes("/api/ws/v1"),
		router.ChatWebsocketRoutes("/api/ws/v1"),
	)

	server.Run()
}
