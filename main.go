package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/aws"
	"github.com/NextMind-AI/followup-go/config"
	"github.com/NextMind-AI/followup-go/engine"
	"github.com/NextMind-AI/followup-go/openai"
	"github.com/NextMind-AI/followup-go/redis"
	"github.com/NextMind-AI/followup-go/server"
	"github.com/NextMind-AI/followup-go/template"
	"github.com/NextMind-AI/followup-go/vonage"
)

func main() {
	cfg := config.Load()

	vonageClient := vonage.NewClient(
		cfg.VonageJWT,
		cfg.MessagesAPIURL,
		cfg.VonageSenderID,
		cfg.GatewayTimeout,
	)

	redisClient := redis.NewClient(
		cfg.RedisAddr,
		cfg.RedisPassword,
		cfg.RedisDB,
	)

	templates, err := template.NewSource(cfg.TemplatesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load follow-up templates")
	}

	var classifier engine.Classifier = engine.NewKeywordClassifier()
	if cfg.Classifier == "openai" {
		openaiClient := openai.NewClient(cfg.OpenAIKey, http.Client{Timeout: cfg.GatewayTimeout})
		classifier = openai.NewClassifier(openaiClient, cfg.GatewayTimeout)
		log.Info().Msg("Using model-backed conversation classifier")
	}

	followupEngine := engine.New(
		&redisClient,
		&redisClient,
		&redisClient,
		&vonageClient,
		templates,
		classifier,
		engine.Config{
			StalenessThreshold:  cfg.StalenessThreshold,
			ScanBatchLimit:      cfg.ScanBatchLimit,
			SendBatchLimit:      cfg.SendBatchLimit,
			ContextMessageCount: cfg.ContextMessages,
			ClaimHold:           cfg.ClaimHold,
			BackoffIntervals:    cfg.BackoffIntervals,
			Tenants:             cfg.Tenants,
		},
	)

	if cfg.S3Bucket != "" {
		followupEngine.SetArchiver(aws.NewClient(cfg.S3Region, cfg.S3Bucket))
	}

	log.Info().
		Strs("tenants", cfg.Tenants).
		Str("classifier", cfg.Classifier).
		Msg("Follow-up engine initialized")

	srv := server.New(followupEngine, &redisClient, &vonageClient)
	srv.Start(cfg.Port)
}
