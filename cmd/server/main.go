package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	garden "github.com/goliatone/garden-planner"
	"github.com/goliatone/garden-planner/config"
	"github.com/goliatone/garden-planner/provider/clerk"
	"github.com/goliatone/garden-planner/recommend"
)

type App struct {
	config  *gconfig.Container[*config.BaseConfig]
	bunDB   *bun.DB
	repo    garden.RepositoryManager
	gate    *garden.Gate
	srv     router.Server[*fiber.App]
	logger  *glog.BaseLogger
	closers []func() error
}

func (a *App) Config() *config.BaseConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("garden"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.BaseConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithAuth(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(app.Config().GetServer().GetAddress())

	WaitExitSignal()

	for _, close := range app.closers {
		if err := close(); err != nil {
			app.GetLogger("app").Error("shutdown", "error", err)
		}
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	pcfg := app.Config().GetPersistence()

	var db *sql.DB
	var dialect schema.Dialect
	var err error

	switch strings.ToLower(pcfg.GetDriver()) {
	case "postgres", "pg":
		db = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(pcfg.GetDSN())))
		dialect = pgdialect.New()
	default:
		db, err = sql.Open(sqliteshim.ShimName, pcfg.GetDSN())
		if err != nil {
			return err
		}
		dialect = sqlitedialect.New()
	}

	persistence.RegisterModel((*garden.User)(nil))
	persistence.RegisterModel((*garden.Garden)(nil))
	persistence.RegisterModel((*garden.GardenElement)(nil))
	persistence.RegisterModel((*garden.GardenNote)(nil))
	persistence.RegisterModel((*garden.GardenRecommendation)(nil))

	client, err := persistence.New(pcfg, db, dialect)
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))

	migrationsFS, err := fs.Sub(garden.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()
	app.repo = garden.NewRepositoryManager(client.DB())

	return app.repo.Validate()
}

func WithAuth(ctx context.Context, app *App) error {
	acfg := app.Config().GetAuth()

	endpoint := acfg.GetJWKSEndpoint()
	if endpoint == "" {
		endpoint = garden.JWKSEndpointForIssuer(acfg.GetIssuer())
	}

	keys := garden.NewKeySet(endpoint,
		garden.WithKeySetLogger(app.GetLogger("auth:keys")),
	)

	validator := garden.NewTokenValidator(keys, acfg, app.GetLogger("auth:tokens"))

	var resolver garden.ProfileResolver
	switch acfg.GetProviderStrategy() {
	case "header":
		resolver = garden.HeaderProfileResolver{}
	default:
		pcfg := app.Config().GetProvider()
		client := clerk.New(clerk.Config{
			SecretKey:  pcfg.GetSecretKey(),
			APIBaseURL: pcfg.GetAPIBaseURL(),
		})
		resolver = clerk.NewResolver(client, app.GetLogger("auth:provider"))
	}

	reconciler := garden.NewReconciler(app.repo.Users(), resolver, app.GetLogger("auth:reconcile"))

	app.gate = garden.NewGate(validator, reconciler, acfg, app.GetLogger("auth:gate"))

	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
			AppName:       app.Config().GetApp().GetName(),
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	srv.Router().Get("/healthz", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	acfg := app.Config().GetApp()
	srv.Router().Get("/", func(ctx router.Context) error {
		return ctx.JSON(router.StatusOK, map[string]string{
			"name":    acfg.GetName(),
			"version": acfg.GetVersion(),
			"env":     acfg.GetEnv(),
		})
	})

	api := srv.Router().Group("/api")
	api.Use(garden.RequireAuth(app.gate))

	controller := garden.NewHTTPController(app.repo, app.gate.ContextKey(), app.GetLogger("http:garden"))
	controller.RegisterRoutes(api)

	rcfg := app.Config().GetRecommender()
	if rcfg.GetAPIKey() != "" {
		service, closeFn, err := recommend.New(ctx, recommend.Config{
			APIKey: rcfg.GetAPIKey(),
			Model:  rcfg.GetModel(),
		}, app.GetLogger("recommend"))
		if err != nil {
			return err
		}
		app.closers = append(app.closers, closeFn)

		rec := recommend.NewHTTPController(service, app.repo, app.gate.ContextKey(), app.GetLogger("http:recommend"))
		rec.RegisterRoutes(api)
	} else {
		app.GetLogger("recommend").Warn("No recommender API key configured, routes disabled")
	}

	app.srv = srv

	return nil
}

func WaitExitSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(
		quit,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	sig := <-quit
	fmt.Println("exiting...")
	return sig
}
