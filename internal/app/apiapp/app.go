package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ebuka-odih/nyem-backend/internal/config"
	s3infra "github.com/ebuka-odih/nyem-backend/internal/infra/s3"
	"github.com/ebuka-odih/nyem-backend/internal/jobs/cleanup"
	pgrepo "github.com/ebuka-odih/nyem-backend/internal/repo/postgres"
	redrepo "github.com/ebuka-odih/nyem-backend/internal/repo/redis"
	authsvc "github.com/ebuka-odih/nyem-backend/internal/services/auth"
	convsvc "github.com/ebuka-odih/nyem-backend/internal/services/conversations"
	escrowsvc "github.com/ebuka-odih/nyem-backend/internal/services/escrow"
	lifecyclesvc "github.com/ebuka-odih/nyem-backend/internal/services/lifecycle"
	listingssvc "github.com/ebuka-odih/nyem-backend/internal/services/listings"
	messagessvc "github.com/ebuka-odih/nyem-backend/internal/services/messages"
	ratesvc "github.com/ebuka-odih/nyem-backend/internal/services/rate"
	requestssvc "github.com/ebuka-odih/nyem-backend/internal/services/requests"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
	cleanupJob *cleanup.Job
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	signalRepo := redrepo.NewSignalRepo(redisClient)
	focusRepo := redrepo.NewFocusRepo(redisClient, 0)

	userRepo := pgrepo.NewUserRepo(pool)
	listingRepo := pgrepo.NewListingRepo(pool)
	requestRepo := pgrepo.NewRequestRepo(pool)
	conversationRepo := pgrepo.NewConversationRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)
	escrowRepo := pgrepo.NewEscrowRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, userRepo, cfg.Auth.RefreshTTL)

	listingService := listingssvc.NewService(
		listingRepo,
		listingssvc.NewS3Storage(s3Client, cfg.S3.Bucket),
		cfg.S3.URLExpiry,
		cfg.Limits.ListLimit,
	)

	rateLimiter := ratesvc.NewLimiter(
		rateRepo,
		cfg.Limits.SendRatePerMinute,
		cfg.Limits.SendRatePer10Seconds,
	)

	requestService := requestssvc.NewService(requestssvc.Dependencies{
		Pool:          pool,
		RequestStore:  requestRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Escrow:        escrowRepo,
		Listings:      listingRepo,
		Signaler:      signalRepo,
	}, cfg.Limits.ListLimit)

	conversationService := convsvc.NewService(conversationRepo, cfg.Limits.ListLimit)

	messageService := messagessvc.NewService(messagessvc.Dependencies{
		Pool:          pool,
		MessageStore:  messageRepo,
		Conversations: conversationRepo,
		RateLimiter:   rateLimiter,
		Signaler:      signalRepo,
		HistoryPage:   cfg.Limits.HistoryPageSize,
	})

	escrowService := escrowsvc.NewService(escrowsvc.Dependencies{
		Pool:          pool,
		Store:         escrowRepo,
		Conversations: conversationRepo,
		Listings:      listingRepo,
	})

	lifecycleService := lifecyclesvc.NewService(lifecyclesvc.Dependencies{
		Requests:      requestService,
		Conversations: conversationService,
		Messages:      messageService,
		Escrow:        escrowService,
		Focus:         focusRepo,
	}, cfg.Limits.ListLimit)

	RegisterRoutes(r, Dependencies{
		AuthService:         authService,
		ListingService:      listingService,
		RequestService:      requestService,
		ConversationService: conversationService,
		MessageService:      messageService,
		EscrowService:       escrowService,
		LifecycleService:    lifecycleService,
		Logger:              log,
		Config:              cfg,
	})

	cleanupJob := cleanup.NewDeclinedRequestJob(requestRepo, cfg.Cleanup.DeclinedRetention, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
		cleanupJob: cleanupJob,
	}, nil
}

// RunCleanup blocks, purging declined requests on the configured interval.
func (a *App) RunCleanup(ctx context.Context) error {
	if a.cleanupJob == nil {
		return nil
	}
	return a.cleanupJob.RunLoop(ctx, a.cfg.Cleanup.Interval)
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
