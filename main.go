package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docchat/internal/api"
	"docchat/internal/config"
	"docchat/internal/documents"
	"docchat/internal/extract"
	"docchat/internal/logging"
	"docchat/internal/redis"
	"docchat/internal/service/ai"
	"docchat/internal/service/assistant"
	"docchat/internal/storage"
	"docchat/internal/weather"
)

var configPath = flag.String("config", os.Getenv("DOCCHAT_CONFIG"), "Path to config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	extractor, err := extract.New(ctx, logger.Named("extract"))
	if err != nil {
		return err
	}
	store, err := documents.NewStore(cfg.Documents.Dir, extractor, logger.Named("documents"),
		documents.WithLoadWorkers(cfg.Documents.LoadWorkers))
	if err != nil {
		return err
	}
	if _, err := store.LoadAll(ctx); err != nil {
		return err
	}

	// both stay nil interfaces unless a transcript database is configured
	var (
		recorder assistant.Recorder
		uploads  api.UploadRecorder
	)
	if cfg.Storage.Driver != "" {
		db, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.Migrate(db, cfg.Storage.Driver); err != nil {
			return err
		}
		transcript := storage.NewTranscript(db, logger.Named("transcript"))
		transcript.StartPruner(ctx, cfg.Storage.Retention, cfg.Storage.PruneInterval)
		recorder, uploads = transcript, transcript
		logger.Info("transcript enabled", zap.String("driver", cfg.Storage.Driver))
	}

	if cfg.Redis.Enabled {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		notifier := documents.NewNotifier(rdb, cfg.Redis.Channel, store, logger.Named("notifier"))
		notifier.Attach()
		go func() {
			if err := notifier.Listen(ctx, nil); err != nil {
				logger.Error("document invalidation listener stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Documents.Watch {
		watcher := documents.NewWatcher(store, logger.Named("watcher"))
		go func() {
			if err := watcher.Run(ctx, nil); err != nil {
				logger.Error("documents watcher stopped", zap.Error(err))
			}
		}()
	}

	gemini, err := ai.NewGeminiClient(ctx, cfg.Gemini, logger.Named("gemini"))
	if err != nil {
		return err
	}
	chat := assistant.NewConversationEngine(gemini, assistant.NewHistory(cfg.Chat.MaxHistoryTurns), recorder, logger.Named("chat"))
	answers := assistant.NewDocumentQA(store, gemini, cfg.Documents.ContextChars, logger.Named("ask"))

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(api.Deps{
		Chat:           chat,
		Documents:      store,
		Answers:        answers,
		Weather:        weather.NewClient(cfg.Weather, logger.Named("weather")),
		Uploads:        uploads,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger.Named("api"),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.NewRouter(handler, cfg.Server, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("address", cfg.Server.Address),
			zap.String("documents_dir", cfg.Documents.Dir),
			zap.Int("documents", store.Len()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
