package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/formexa/formexa/modules/account"
	"github.com/formexa/formexa/modules/ai"
	billingmod "github.com/formexa/formexa/modules/billing"
	projectsmod "github.com/formexa/formexa/modules/projects"
	"github.com/formexa/formexa/pkg/auth"
	"github.com/formexa/formexa/pkg/billing"
	"github.com/formexa/formexa/pkg/config"
	"github.com/formexa/formexa/pkg/email"
	"github.com/formexa/formexa/pkg/entitlement"
	"github.com/formexa/formexa/pkg/generate"
	"github.com/formexa/formexa/pkg/httpserver"
	"github.com/formexa/formexa/pkg/jwt"
	"github.com/formexa/formexa/pkg/logger"
	"github.com/formexa/formexa/pkg/mongo"
	"github.com/formexa/formexa/pkg/plans"
	"github.com/formexa/formexa/pkg/projects"
	"github.com/formexa/formexa/pkg/ratelimiter"
	"github.com/formexa/formexa/pkg/redis"
)

type appConfig struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	AppURL        string `env:"APP_URL" envDefault:"http://localhost:8080"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY,required"`
	PlansFile     string `env:"PLANS_FILE"`

	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL,required"`
	CheckoutCancelURL  string `env:"CHECKOUT_CANCEL_URL,required"`

	EmailDir string `env:"EMAIL_DIR" envDefault:"./tmp/emails"`

	RateLimitCapacity int           `env:"RATE_LIMIT_CAPACITY" envDefault:"60"`
	RateLimitRefill   int           `env:"RATE_LIMIT_REFILL" envDefault:"60"`
	RateLimitInterval time.Duration `env:"RATE_LIMIT_INTERVAL" envDefault:"1m"`
}

func main() {
	ctx := context.Background()

	var (
		appCfg    appConfig
		logCfg    logger.Config
		httpCfg   httpserver.Config
		mongoCfg  mongo.Config
		redisCfg  redis.Config
		paddleCfg billing.PaddleConfig
		emailCfg  email.Config
		openaiCfg generate.OpenAIConfig
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&logCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&mongoCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&paddleCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&openaiCfg)

	log := logger.NewFromConfig(logCfg)
	logger.SetAsDefault(log)

	db, err := mongo.NewWithDatabase(ctx, mongoCfg)
	if err != nil {
		log.ErrorContext(ctx, "mongo connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer db.Client().Disconnect(context.Background())

	if err := auth.EnsureUserIndexes(ctx, db); err != nil {
		log.ErrorContext(ctx, "failed to ensure user indexes", logger.Error(err))
		os.Exit(1)
	}
	if err := billing.EnsureSubscriptionIndexes(ctx, db); err != nil {
		log.ErrorContext(ctx, "failed to ensure subscription indexes", logger.Error(err))
		os.Exit(1)
	}
	if err := projects.EnsureProjectIndexes(ctx, db); err != nil {
		log.ErrorContext(ctx, "failed to ensure project indexes", logger.Error(err))
		os.Exit(1)
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.ErrorContext(ctx, "redis connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer redisClient.Close()

	// Plan catalog. A YAML file overrides the built-in defaults.
	source := plans.NewDefaultSource()
	if appCfg.PlansFile != "" {
		source = plans.NewFileSource(appCfg.PlansFile)
	}
	catalog, err := plans.NewCatalog(ctx, source)
	if err != nil {
		log.ErrorContext(ctx, "failed to load plan catalog", logger.Error(err))
		os.Exit(1)
	}

	usageStore := entitlement.NewMongoStore(db)
	guard := entitlement.NewService(usageStore, catalog, entitlement.WithLogger(log))

	authSvc := auth.NewPasswordService(auth.NewMongoStorage(db),
		auth.WithPasswordLogger(log),
		auth.WithAfterRegister(func(ctx context.Context, u *auth.User) error {
			return usageStore.Create(ctx, entitlement.NewLedger(u.ID, time.Now().UTC()))
		}),
	)

	tokens, err := jwt.NewFromString(appCfg.JWTSigningKey)
	if err != nil {
		log.ErrorContext(ctx, "invalid JWT signing key", logger.Error(err))
		os.Exit(1)
	}

	provider, err := billing.NewPaddleProvider(paddleCfg)
	if err != nil {
		log.ErrorContext(ctx, "failed to init payment provider", logger.Error(err))
		os.Exit(1)
	}

	subStore := billing.NewMongoStore(db)
	directory := billing.NewMongoDirectory(db)
	billingSvc := billing.NewService(subStore, directory, catalog, provider,
		billing.WithLogger(log),
		billing.WithPriceIDs(paddleCfg.PriceIDs()),
		billing.WithCheckoutURLs(appCfg.CheckoutSuccessURL, appCfg.CheckoutCancelURL),
	)
	processor := billing.NewProcessor(subStore, directory, billing.WithProcessorLogger(log))

	var sender email.EmailSender
	if emailCfg.PostmarkServerToken != "" {
		sender, err = email.NewPostmarkClient(emailCfg)
		if err != nil {
			log.ErrorContext(ctx, "failed to init email sender", logger.Error(err))
			os.Exit(1)
		}
	} else {
		sender = email.NewDevSender(appCfg.EmailDir)
		log.InfoContext(ctx, "no postmark token configured, writing emails to disk",
			slog.String("dir", appCfg.EmailDir))
	}
	notifier := email.NewNotifier(sender, log)

	generator, err := generate.NewOpenAIClient(openaiCfg)
	if err != nil {
		log.ErrorContext(ctx, "failed to init generation provider", logger.Error(err))
		os.Exit(1)
	}

	limiter, err := ratelimiter.NewBucket(
		ratelimiter.NewRedisStore(redisClient, "ratelimit"),
		ratelimiter.Config{
			Capacity:       appCfg.RateLimitCapacity,
			RefillRate:     appCfg.RateLimitRefill,
			RefillInterval: appCfg.RateLimitInterval,
		},
	)
	if err != nil {
		log.ErrorContext(ctx, "invalid rate limit config", logger.Error(err))
		os.Exit(1)
	}

	library := projects.NewService(projects.NewMongoStore(db), projects.WithLogger(log))

	accountSvc := account.NewService(authSvc, tokens, notifier, log, account.WithAppURL(appCfg.AppURL))
	aiSvc := ai.NewService(guard, catalog, generator, authSvc, log, ai.WithProjectArchive(library))
	billingModSvc := billingmod.NewService(billingSvc, processor, provider, authSvc, notifier, log)
	projectsSvc := projectsmod.NewService(library, log)

	authn := jwt.Middleware[auth.AccessClaims](tokens, nil)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/ready", httpserver.HealthCheckHandler(ctx, log,
		mongo.Healthcheck(db.Client()),
		redis.Healthcheck(redisClient),
	))

	// Signature-authenticated, so it stays outside the JWT group. Rate
	// limiting would make the provider retry storms worse, not better.
	r.Mount("/webhooks", billingModSvc.WebhookRouter())

	r.Group(func(r chi.Router) {
		r.Use(ratelimiter.Middleware(limiter, ratelimiter.KeyByClientIP))
		r.Mount("/auth", accountSvc.Router())

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Mount("/account", accountSvc.ProtectedRouter())
			r.Mount("/ai", aiSvc.Router())
			r.Mount("/projects", projectsSvc.Router())
			r.Mount("/billing", billingModSvc.Router())
		})
	})

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("server starting",
				slog.String("addr", httpCfg.Addr),
				slog.String("env", appCfg.Env))
		}),
	)
	if err := srv.Run(ctx, r); err != nil {
		log.ErrorContext(ctx, "server exited with error", logger.Error(err))
		os.Exit(1)
	}
}
