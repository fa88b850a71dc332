// Package main seeds a running brand catalog with sample brands through the
// admin API. It signs its own admin token with the service's JWT_SECRET.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/utafrali/brandcatalog/internal/config"
	"github.com/utafrali/brandcatalog/pkg/httpclient"
	"github.com/utafrali/brandcatalog/pkg/logger"
	"github.com/utafrali/brandcatalog/pkg/middleware"
)

type seedBrand struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
	Featured    bool   `json:"featured"`
}

var brands = []seedBrand{
	{"Nike", "Athletic footwear, apparel and equipment.", "https://nike.com", true},
	{"Adidas", "Sportswear designed for performance.", "https://adidas.com", true},
	{"Puma", "Sports lifestyle brand.", "https://puma.com", false},
	{"New Balance", "Running shoes and athletic wear.", "https://newbalance.com", true},
	{"Levi's", "", "https://levi.com", false}, // rejected: apostrophe
	{"Dolce & Gabbana", "Italian luxury fashion house.", "https://dolcegabbana.com", true},
	{"Marks & Spencer", "Clothing, home and food.", "https://marksandspencer.com", false},
	{"The North Face", "Outdoor recreation products.", "https://thenorthface.com", true},
	{"Under Armour", "", "underarmour.com", false},
	{"Columbia", "Outerwear and sportswear.", "https://columbia.com", false},
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log := logger.New("brandcatalog-seed", getEnv("LOG_LEVEL", "info"))

	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	baseURL := getEnv("SEED_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.HTTPPort))

	token, err := middleware.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, "seed", "admin", 10*time.Minute)
	if err != nil {
		log.Error("failed to sign admin token", slog.String("error", err.Error()))
		os.Exit(1)
	}

	client := httpclient.New(httpclient.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var created, failed int
	for _, b := range brands {
		slugValue, err := createBrand(ctx, client, baseURL, token, b)
		if err != nil {
			failed++
			log.Warn("brand not seeded", slog.String("name", b.Name), slog.String("error", err.Error()))
			continue
		}
		created++
		log.Info("brand seeded", slog.String("name", b.Name), slog.String("slug", slugValue))
	}

	log.Info("seed finished", slog.Int("created", created), slog.Int("failed", failed))
}

func createBrand(ctx context.Context, client *httpclient.Client, baseURL, token string, b seedBrand) (string, error) {
	body, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/admin/brands", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var result struct {
		Data struct {
			Slug string `json:"slug"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return result.Data.Slug, nil
}
