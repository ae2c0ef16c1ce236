package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"intake-backend/internal/docstore"
	"intake-backend/internal/intake"
	"intake-backend/internal/ocr"
	"intake-backend/internal/registry"
	"intake-backend/internal/shared/config"
	"intake-backend/internal/shared/server"
	"intake-backend/internal/shared/storage/db"
	"intake-backend/internal/shared/storage/kv"
	"intake-backend/internal/shared/storage/object"
	localstore "intake-backend/internal/shared/storage/object/local"
	s3store "intake-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	KV        kv.Store
	Store     object.ObjectStore
	Patients  registry.Source
	Matcher   *registry.Matcher
	Documents *docstore.Manager
	Pipeline  *intake.Pipeline
	Intake    *intake.Handler
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	kvStore, err := buildKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		KV:     kvStore,
		Store:  store,
	}

	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config: app.Config,
		Intake: app.Intake,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; patient lookups use the remote registry only")
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; patient lookups use the remote registry only: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildKV(ctx context.Context, cfg config.Config) (kv.Store, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Printf("bootstrap: REDIS_ADDR empty; document records are kept in process memory")
		return kv.NewMemoryStore(), nil
	}

	redisStore, err := kv.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis connect failed; document records are kept in process memory: %v", err)
			return kv.NewMemoryStore(), nil
		}
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return redisStore, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildPatients(app *App) registry.Source {
	cfg := app.Config
	var sources []registry.Source
	if app.DB != nil {
		sources = append(sources, &registry.PGSource{DB: app.DB, Limit: cfg.MaxCandidates})
	}
	if strings.TrimSpace(cfg.RegistryURL) != "" {
		sources = append(sources, registry.NewHTTPSource(cfg.RegistryURL, cfg.RegistryAPIKey))
	}
	if len(sources) == 0 {
		// No registry configured; every document lands in manual review.
		log.Printf("bootstrap: no patient registry configured; all matches go to manual review")
		return registry.NewMemorySource(nil)
	}
	return registry.NewChain(sources...)
}

func buildExtractor(cfg config.Config) ocr.Extractor {
	if strings.TrimSpace(cfg.OCRServiceURL) != "" {
		return ocr.NewHTTPExtractor(cfg.OCRServiceURL, cfg.OCRAPIKey)
	}
	return ocr.LocalExtractor{}
}

func buildServices(app *App) {
	cfg := app.Config

	app.Patients = buildPatients(app)
	app.Matcher = registry.NewMatcher(registry.MatcherConfig{
		Threshold:      cfg.MatchThreshold,
		MinTokenLength: cfg.MinTokenLength,
		MaxCandidates:  cfg.MaxCandidates,
	})

	app.Documents = docstore.NewManager(app.KV, docstore.Config{
		LimitBytes: cfg.StorageLimitMB << 20,
		Retention:  cfg.RetentionDocs,
		CacheTTL:   cfg.CacheTTL,
	})

	app.Pipeline = intake.NewPipeline(
		buildExtractor(cfg),
		app.Patients,
		app.Matcher,
		app.Documents,
		app.Store,
		intake.Config{
			MatchThreshold:  cfg.MatchThreshold,
			AmbiguityMargin: cfg.AmbiguityMargin,
		},
	)

	app.Intake = intake.NewHandler(app.Pipeline, app.Documents)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
