// Command demo runs one generation and one chat turn in-process against the
// noop AI adapter and prints what ended up on disk. No keys or network needed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"dream2design/internal/config"
	aiAdapters "dream2design/internal/infra/adapters/ai"
	"dream2design/internal/infra/db/memory"
	"dream2design/internal/infra/lock"
	"dream2design/internal/infra/logging"
	"dream2design/internal/infra/project"
	"dream2design/internal/infra/tokens"
	"dream2design/internal/infra/worker"
	"dream2design/internal/usecase"
)

func main() {
	prompt := flag.String("prompt", "todo list app", "what to generate")
	message := flag.String("chat", "make the heading larger", "follow-up chat message")
	dir := flag.String("dir", "", "jobs directory (default: a temp dir)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jobsDir := *dir
	if jobsDir == "" {
		tmp, err := os.MkdirTemp("", "d2d-demo-*")
		if err != nil {
			log.Fatalf("temp dir: %v", err)
		}
		jobsDir = tmp
	}

	logger := logging.New(config.LogConfig{Level: "info"}, true)

	store, err := project.NewFileStore(jobsDir, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	pool := worker.NewPool(2, 4, logger)
	pool.Start(ctx)
	defer pool.Stop()

	gateway := usecase.NewModelGateway(aiAdapters.NewNoopAIAdapter(logger), usecase.GatewayConfig{
		PrimaryModel:  "noop-primary",
		FallbackModel: "noop-fallback",
	}, tokens.ApproxCounter{}, logger)

	jobs := usecase.NewJobUseCase(memory.NewJobRepo(), store, lock.NewKeyedLocker(), pool, gateway,
		usecase.JobOptions{ChatPolicy: usecase.DiscourageCreation, Dev: true}, logger)

	id, err := jobs.CreateJob(ctx, *prompt)
	if err != nil {
		log.Fatalf("create job: %v", err)
	}
	log.Printf("job %s created", id)

	for {
		snap, err := jobs.GetJobStatus(ctx, id)
		if err != nil {
			log.Fatalf("status: %v", err)
		}
		if snap.Status.Terminal() {
			log.Printf("job %s: %s %v", id, snap.Status, snap.Progress)
			break
		}
		select {
		case <-ctx.Done():
			log.Fatalf("timed out waiting for job")
		case <-time.After(100 * time.Millisecond):
		}
	}

	res, err := jobs.Chat(ctx, id, *message)
	if err != nil {
		log.Fatalf("chat: %v", err)
	}
	log.Printf("chat reply: %s (updated=%v paths=%v)", res.Reply, res.FilesUpdated, res.UpdatedPaths)

	tree, err := jobs.ListProjectFiles(ctx, id)
	if err != nil {
		log.Fatalf("list files: %v", err)
	}
	out, _ := json.MarshalIndent(tree, "", "  ")
	log.Printf("files under %s:\n%s", store.Root(), out)
}
