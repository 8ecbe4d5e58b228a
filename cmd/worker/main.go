// Standalone import worker. Runs the same dispatch loop as cmd/server so
// import throughput can be scaled horizontally; the per-profile lock keeps
// concurrent workers off the same profile.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/contact-core/internal/alerts"
	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/config"
	"github.com/ignite/contact-core/internal/importer"
	"github.com/ignite/contact-core/internal/store"
)

const dispatchInterval = 10 * time.Second

func main() {
	log.Println("[Worker] contact-core import worker starting (cmd/worker)")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := store.Connect(cfg.Store.URL)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer client.Disconnect(context.Background())
	st := store.New(client, cfg.Store.Database)

	indexCtx, indexCancel := context.WithTimeout(ctx, 60*time.Second)
	if err := st.EnsureIndexes(indexCtx, cfg.Retention.ConflictTTLDays); err != nil {
		indexCancel()
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	indexCancel()

	emitter := alerts.NewEmitter(st)
	cls := classifier.New(classifier.NewStoreDictionary(st))
	worker := importer.NewWorker(st, cls, emitter, cfg.Importer)
	log.Printf("[Worker] dispatching as %s", worker.WorkerID())

	go func() {
		ticker := time.NewTicker(dispatchInterval)
		defer ticker.Stop()
		for {
			// Drain the queue before sleeping so a backlog of small jobs
			// does not pay the tick interval per job.
			for {
				claimed, err := worker.Dispatch(ctx)
				if err != nil {
					log.Printf("[Worker] dispatch error: %v", err)
					break
				}
				if !claimed {
					break
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("[Worker] shutting down")
	cancel()
}
