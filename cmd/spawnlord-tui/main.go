package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rmax-ai/spawnlord/pkg/client"
)

func main() {
	addr := flag.String("api", envOrDefault("SPAWNLORD_API", "http://127.0.0.1:8090"), "daemon base URL")
	flag.Parse()

	c := client.NewClient(*addr)
	c.SetRetry(nil, 0)

	p := tea.NewProgram(initialModel(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
