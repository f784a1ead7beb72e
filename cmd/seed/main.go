// seed publishes one run.requested event built from queries.yaml and
// allowlists.yaml, for exercising the run worker against a local Redis.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pjsousa/jobato-ml/internal/domain"
	"github.com/pjsousa/jobato-ml/internal/eventstream"
	"github.com/pjsousa/jobato-ml/internal/mlconfig"
	"github.com/pjsousa/jobato-ml/internal/search"
)

func main() {
	ctx := context.Background()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "./config"
	}
	consumerGroup := os.Getenv("REDIS_CONSUMER_GROUP")
	if consumerGroup == "" {
		consumerGroup = "run-workers"
	}

	queries, err := mlconfig.LoadQueries(configDir)
	if err != nil {
		log.Fatalf("load queries.yaml: %v", err)
	}
	allowlist, err := mlconfig.LoadAllowlist(configDir)
	if err != nil {
		log.Fatalf("load allowlists.yaml: %v", err)
	}
	if len(queries) == 0 || len(allowlist) == 0 {
		log.Fatal("queries.yaml and allowlists.yaml must both be non-empty")
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()

	stream := eventstream.New(client, consumerGroup)
	if err := stream.EnsureGroup(ctx); err != nil {
		log.Fatalf("ensure group: %v", err)
	}

	var runInputs []domain.RunInput
	for _, q := range queries {
		for _, d := range allowlist {
			runInputs = append(runInputs, domain.RunInput{
				QueryText:   q,
				Domain:      d,
				SearchQuery: search.BuildSiteQuery(d, q),
			})
		}
	}

	payload, err := json.Marshal(map[string]any{"runInputs": runInputs})
	if err != nil {
		log.Fatalf("marshal payload: %v", err)
	}

	runID := uuid.NewString()
	id, err := stream.Publish(ctx, eventstream.Event{
		"eventId":      uuid.NewString(),
		"eventType":    "run.requested",
		"eventVersion": "1",
		"occurredAt":   time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		"runId":        runID,
		"payload":      string(payload),
	})
	if err != nil {
		log.Fatalf("publish run.requested: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Run ID:        %s\n", runID)
	fmt.Printf("  Stream entry:  %s\n", id)
	fmt.Printf("  Queries:       %d\n", len(queries))
	fmt.Printf("  Allowlist:     %d domains\n", len(allowlist))
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — start the run worker:")
	fmt.Println()
	fmt.Println("    go run ./cmd/worker")
	fmt.Println()
	fmt.Println("  Step 2 — once it publishes run.completed, check status over HTTP:")
	fmt.Println()
	fmt.Printf("    curl -s http://localhost:8080/ml/retrain/status\n")
}
