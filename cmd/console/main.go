package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    60 * time.Second,
	}

	api := &apiClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.APIBaseURL,
	}

	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API at %s. Please ensure the API is running.\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(api),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
