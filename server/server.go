package server

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/engine"
	"github.com/NextMind-AI/followup-go/redis"
)

// Server exposes the follow-up engine's operations to the outer
// scheduler and operator tooling.
type Server struct {
	app         *fiber.App
	engine      *engine.Engine
	redisClient *redis.Client
	gateway     engine.MessageGatewayInterface
}

func New(followupEngine *engine.Engine, redisClient *redis.Client, gateway engine.MessageGatewayInterface) *Server {
	app := fiber.New()

	server := &Server{
		app:         app,
		engine:      followupEngine,
		redisClient: redisClient,
		gateway:     gateway,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) Start(port string) {
	log.Info().Str("port", port).Msg("Starting follow-up engine server")

	err := s.app.Listen(":"+port, fiber.ListenConfig{
		DisableStartupMessage: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
