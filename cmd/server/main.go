package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/contact-core/internal/alerts"
	"github.com/ignite/contact-core/internal/api"
	"github.com/ignite/contact-core/internal/calendar"
	"github.com/ignite/contact-core/internal/classifier"
	"github.com/ignite/contact-core/internal/config"
	"github.com/ignite/contact-core/internal/emailqueue"
	"github.com/ignite/contact-core/internal/importer"
	"github.com/ignite/contact-core/internal/llm"
	"github.com/ignite/contact-core/internal/maintenance"
	"github.com/ignite/contact-core/internal/pkg/distlock"
	"github.com/ignite/contact-core/internal/scheduler"
	"github.com/ignite/contact-core/internal/search"
	"github.com/ignite/contact-core/internal/store"
	"github.com/ignite/contact-core/internal/trafficlight"
)

func main() {
	log.Println("[Server] contact-core starting (cmd/server)")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
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

	// Redis (upload previews, merge-candidates and metrics caches)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	// Core services
	emitter := alerts.NewEmitter(st)
	dictionary := classifier.NewStoreDictionary(st)
	cls := classifier.New(dictionary)
	reclassifier := classifier.NewReclassifier(st, cls)

	importWorker := importer.NewWorker(st, cls, emitter, cfg.Importer)
	importService := importer.NewService(st, rdb, cfg.Importer)

	actor := search.NewActorClient(cfg.Search)
	driver := search.NewDriver(st, emitter, cls, actor, cfg.Search)

	caches := maintenance.NewCaches(st, rdb)

	// Email queue. Without mailer credentials the drain stays unregistered
	// and rows accumulate in queued state.
	var queue *emailqueue.Queue
	if cfg.Mailer.AccessKey != "" {
		mailer, err := emailqueue.NewSESMailer(ctx, cfg.Mailer)
		if err != nil {
			log.Fatalf("Failed to build mailer: %v", err)
		}
		queue = emailqueue.NewQueue(st, mailer)
	} else {
		log.Println("[Server] mailer not configured; email drain disabled")
	}

	var newsletters *maintenance.Newsletters
	if cfg.OpenAI.APIKey != "" && queue != nil {
		newsletters = maintenance.NewNewsletters(st, llm.NewClient(cfg.OpenAI), queue, cfg.Frontend.BaseURL)
	} else {
		log.Println("[Server] newsletter generation disabled (needs openai key and mailer)")
	}

	var calReader calendar.Reader
	if cfg.Calendar.RefreshToken != "" {
		cal, err := calendar.NewClient(ctx, cfg.Calendar)
		if err != nil {
			log.Fatalf("Failed to build calendar client: %v", err)
		}
		calReader = cal
	} else {
		log.Println("[Server] calendar not configured; webinar inputs disabled")
	}

	board := trafficlight.NewBoard(st, emitter, calReader, cfg.Search)

	// Scheduler
	sched := scheduler.New(emitter)
	sched.Register("import_dispatch", 10*time.Second, func(ctx context.Context) error {
		_, err := importWorker.Dispatch(ctx)
		return err
	})
	sched.Register("scheduled_search", time.Hour, func(ctx context.Context) error {
		if err := driver.RunDueSchedules(ctx); err != nil {
			return err
		}
		// Quota top-up: keep pulling toward the weekly goals between
		// explicit schedule entries.
		return driver.RunAll(ctx)
	})
	sched.Register("reclassify_drain", 30*time.Second, func(ctx context.Context) error {
		_, err := reclassifier.DrainOne(ctx)
		return err
	})
	sched.Register("classifier_metrics", 6*time.Hour, caches.SnapshotClassifierMetrics)
	sched.RegisterDaily("merge_candidates_refresh", 3, 0, caches.RefreshMergeCandidates)
	sched.RegisterWeekly("weekly_quota_check", time.Friday, 17, 0, driver.CheckWeeklyQuota)

	if queue != nil {
		sched.Register("email_drain", time.Minute, func(ctx context.Context) error {
			_, err := queue.Drain(ctx)
			return err
		})
	}
	if newsletters != nil {
		sched.Register("newsletter_send", 15*time.Minute, newsletters.SendDue)
		sched.RegisterWeekly("newsletter_generate", time.Monday, 9, 0, newsletters.GenerateWeekly)
	}
	if calReader != nil && queue != nil {
		webinars := maintenance.NewWebinars(st, calReader, queue)
		sched.Register("webinar_reminders", 5*time.Minute, webinars.MaterializeReminders)
	}

	// Only the leader instance runs the scheduler; extra instances serve
	// the API and import dispatch through cmd/worker.
	var apiSched *scheduler.Scheduler
	leaderLock := distlock.NewRedisLock(rdb, "scheduler:leader", time.Minute)
	leader, err := leaderLock.Acquire(ctx)
	if err != nil {
		log.Fatalf("Failed to acquire scheduler leader lock: %v", err)
	}
	if leader {
		apiSched = sched
		go leaderLock.KeepAlive(ctx)
		go sched.Run(ctx)
	} else {
		log.Println("[Server] scheduler leader lock held elsewhere; serving API only")
	}

	// HTTP API
	handlers := api.NewHandlers(importService, board, cls, dictionary, reclassifier, emitter, apiSched, caches)
	server := api.NewServer(cfg.Server, handlers, nil)

	go func() {
		log.Printf("[Server] listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("[Server] shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown error: %v", err)
	}
}
