// Command extracttest runs the configured extractor against sample messages
// and prints what it understood. Pass messages as arguments to try your own.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/nightlife-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/nightlife-concierge/internal/config"
	"github.com/wolfman30/nightlife-concierge/internal/extraction"
	"github.com/wolfman30/nightlife-concierge/pkg/logging"
)

var samples = []string{
	"I'm a woman, I love house and techno, budget around £40, want somewhere chilled",
	"any events this saturday?",
	"tell me more about Fabric",
	"hey how's it going",
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	extractor, cleanup, err := bootstrap.BuildExtractor(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build extractor: %v", err)
	}
	defer cleanup()

	messages := samples
	if len(os.Args) > 1 {
		messages = os.Args[1:]
	}

	fmt.Printf("provider=%s extractor=%T\n", cfg.LLMProvider, extractor)
	for i, msg := range messages {
		start := time.Now()
		intent := extractor.ClassifyIntent(ctx, msg)
		prefs := extractor.ExtractPreferences(ctx, msg)

		fmt.Printf("\n[%d] %q (%v)\n", i+1, msg, time.Since(start).Round(time.Millisecond))
		printJSON("intent", intent)
		printJSON("preferences", prefs)

		if intent.GeneralChat || intent.WantsMoreInfo {
			mode := extraction.ModeGeneralChat
			if intent.WantsMoreInfo {
				mode = extraction.ModeMoreInfo
			}
			answer, err := extractor.Answer(ctx, mode, nil, msg)
			if err != nil {
				fmt.Printf("    answer error: %v\n", err)
				continue
			}
			fmt.Printf("    answer: %s\n", answer)
		}
	}
}

func printJSON(label string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fmt.Printf("    %s: %v\n", label, err)
		return
	}
	fmt.Printf("    %s: %s\n", label, data)
}
