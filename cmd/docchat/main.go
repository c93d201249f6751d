package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docchat/internal/api"
	"docchat/internal/chat"
	"docchat/internal/demo"
	"docchat/internal/registry"
	"docchat/internal/search"
	"docchat/internal/state"
	"docchat/internal/ui"
	"docchat/internal/watch"
)

func main() {
	godotenv.Load()

	apiURL := envOr("DOCQA_API_URL", "http://localhost:8000")

	dataDir := defaultDataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", dataDir, err)
	}
	statePath := envOr("DOCCHAT_STATE_PATH", filepath.Join(dataDir, "state.json"))
	logPath := envOr("DOCCHAT_LOG_PATH", filepath.Join(dataDir, "docchat.log"))
	historyPath := filepath.Join(dataDir, "history")

	// The TUI owns stdout, so the log goes to a file.
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", logPath, err)
	}
	defer logFile.Close()
	log.SetOutput(logFile)

	store, err := state.Open(statePath)
	if err != nil {
		log.Fatalf("Failed to open state store %s: %v", statePath, err)
	}

	client := api.New(apiURL, store)
	chatMgr := chat.NewManager(client)

	reg := registry.New(client, store)
	reg.SetPublisher(func(doc *registry.Document) {
		if doc == nil {
			chatMgr.SetActiveDocument(nil)
			return
		}
		chatMgr.SetActiveDocument(&chat.DocumentRef{TaskID: doc.TaskID, Filename: doc.Filename})
	})

	monitor := watch.New(client, func() {
		if err := reg.Refresh(context.Background()); err != nil {
			log.Printf("Post-upload refresh failed: %v", err)
		}
	})

	idx, err := search.New()
	if err != nil {
		log.Fatalf("Failed to create search index: %v", err)
	}
	defer idx.Close()

	app := ui.NewApp(ui.Deps{
		Client:      client,
		Store:       store,
		Chat:        chatMgr,
		Registry:    reg,
		Monitor:     monitor,
		Demo:        demo.NewStore(store),
		Search:      idx,
		HistoryPath: historyPath,
	})

	log.Printf("docchat starting, backend %s", apiURL)
	go func() {
		if h, err := client.Health(context.Background()); err != nil {
			log.Printf("Backend health check failed: %v", err)
		} else {
			log.Printf("Backend healthy: %s (version %s)", h.Status, h.Version)
		}
	}()
	if _, err := tea.NewProgram(app).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docchat"
	}
	return filepath.Join(home, ".docchat")
}
