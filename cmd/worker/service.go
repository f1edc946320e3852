package main

import (
	"log"
	"strconv"
	"time"

	"github.com/UnendingLoop/FilmWeekly/internal/imageproc"
	"github.com/UnendingLoop/FilmWeekly/internal/moderation"
	"github.com/wb-go/wbf/config"
)

func envInt(cfg *config.Config, key string, def int) int {
	raw := cfg.GetString(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("Invalid value %q for %s. Exiting the app...", raw, key)
	}
	return val
}

func thumbnailPolicy(cfg *config.Config) imageproc.Policy {
	return imageproc.Policy{
		MaxSide:          envInt(cfg, "THUMB_MAX_SIDE", 720),
		ResizeQuality:    envInt(cfg, "THUMB_QUALITY", 85),
		NormalizeQuality: envInt(cfg, "THUMB_NORMALIZE_QUALITY", 90),
	}
}

func moderationClient(cfg *config.Config) *moderation.Client {
	endpoint := cfg.GetString("MODERATION_API_URL")
	if endpoint == "" {
		log.Fatal("MODERATION_API_URL is required. Exiting the app...")
	}
	timeout := time.Duration(envInt(cfg, "MODERATION_TIMEOUT_SECONDS", 20)) * time.Second
	return moderation.NewClient(endpoint, cfg.GetString("MODERATION_API_TOKEN"), timeout)
}
