package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"feedflow/internal/config"
	"feedflow/internal/handlers"
	"feedflow/internal/httpx"
	"feedflow/internal/models"
	"feedflow/internal/orchestrator"
	"feedflow/internal/prefetch"
	"feedflow/internal/router"
	"feedflow/internal/secrets"
	"feedflow/internal/sources"
	"feedflow/internal/sources/discourse"
	"feedflow/internal/sources/legacybbs"
	"feedflow/internal/sources/linkagg"
	"feedflow/internal/sources/qa"
	"feedflow/internal/sources/rssfeed"
	"feedflow/internal/sources/socialfeed"
	"feedflow/internal/store"
	"feedflow/internal/summary"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using system environment")
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	snap, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer snap.Close()

	creds := secrets.NewCredentialStore(snap, secrets.NewCipher(cfg.EncryptionSecret))

	desktop := httpx.NewClient(30*time.Second, httpx.DesktopUA)
	mobile := httpx.NewClient(30*time.Second, httpx.MobileUA)

	discourseSrc := discourse.New(cfg.DiscourseBaseURL, desktop, creds)
	bbsSrc := legacybbs.New(cfg.LegacyBBSBaseURL, desktop, creds)
	socialSrc := socialfeed.New(cfg.SocialBaseURL, mobile, creds)
	linkaggSrc := linkagg.New(cfg.LinkAggBaseURL, desktop)
	qaSrc := qa.New(cfg.QABaseURL, desktop, creds)
	rssSrc := rssfeed.New(desktop, creds)

	registry := sources.NewRegistry()
	registry.Register(discourseSrc)
	registry.Register(bbsSrc)
	registry.Register(socialSrc)
	registry.Register(linkaggSrc)
	registry.Register(qaSrc)
	registry.Register(rssSrc)

	orch := orchestrator.New(registry, snap)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue := prefetch.NewQueue(snap, prefetch.Unconstrained{},
		func(ctx context.Context, sourceID, threadID string) error {
			_, err := orch.ThreadDetail(ctx, sourceID, threadID, 1, nil)
			return err
		},
		cfg.PrefetchDebounce, cfg.PrefetchInterval)
	go queue.Run(ctx)

	var summarizer summary.Summarizer = summary.Placeholder{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := summary.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warnf("gemini unavailable, falling back to placeholder: %v", err)
		} else {
			summarizer = gemini
		}
	}
	summarySvc := summary.NewService(summarizer, snap, rssSrc, []summary.Gatherer{
		{Name: "Hacker News", Fetch: func(ctx context.Context) ([]models.Thread, error) {
			return linkaggSrc.ListThreads(ctx, "topstories", nil, 1)
		}},
		{Name: "Zhihu Hot", Fetch: func(ctx context.Context) ([]models.Thread, error) {
			return socialSrc.ListThreads(ctx, "hot", nil, 1)
		}},
		{Name: "Forum Activity", Fetch: func(ctx context.Context) ([]models.Thread, error) {
			return bbsSrc.LastActiveThreads(ctx, 10)
		}},
	})

	r := gin.New()
	r.Use(gin.Recovery())
	router.RegisterRoutes(r, router.Handlers{
		Sources: handlers.NewSourceHandler(orch, registry, map[string]handlers.Downvoter{
			socialSrc.ID(): socialSrc,
		}),
		Credentials: handlers.NewCredentialHandler(creds, registry),
		Feeds:       handlers.NewFeedHandler(rssSrc),
		Bookmarks:   handlers.NewBookmarkHandler(snap),
		Digest:      handlers.NewDigestHandler(summarySvc),
		Prefetch:    handlers.NewPrefetchHandler(queue),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
	orch.Flush()
}
