package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	identity "github.com/portlib/identity"
	"github.com/portlib/identity/activitymap"
	"github.com/portlib/identity/middleware/jwtware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := identity.LoadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		return err
	}

	repo := identity.NewRepositoryManager(db)
	repo.MustValidate()

	tokener := identity.NewTokenService(cfg, nil)
	notifier := buildNotifier(cfg)

	sink := activitymap.NewSink(func(_ context.Context, record activitymap.Normalized) error {
		log.Printf("activity verb=%s actor=%s object=%s", record.Verb, record.ActorID, record.ObjectID)
		return nil
	})

	machine := identity.NewAccountStateMachine(repo.Accounts(),
		identity.WithStateMachineActivitySink(sink),
	)

	controller := identity.NewController(identity.ControllerConfig{
		Repo:     repo,
		Uploader: identity.NewDiskUploader(cfg.UploadDir),
		Notifier: notifier,
		Tokener:  tokener,
		Machine:  machine,
		HandlerOptions: []identity.HandlerOption{
			identity.WithHandlerOTPWindow(cfg.VerifyWindow),
			identity.WithHandlerActivitySink(sink),
		},
		EngineOptions: []identity.EngineOption{
			identity.WithEnginePolicy(cfg.SuspensionPolicy()),
			identity.WithEngineActivitySink(sink),
		},
	})

	adminGuard := jwtware.New(jwtware.Config{
		TokenValidator: jwtware.ValidatorFunc(func(raw string) (jwtware.Claims, error) {
			claims, err := tokener.Validate(raw)
			if err != nil {
				return nil, err
			}
			return claims, nil
		}),
		RequiredRoles: []string{identity.RoleAdmin},
	})

	app := fiber.New(fiber.Config{
		AppName: "portlib-identity",
	})

	controller.RegisterRoutes(app, adminGuard)
	app.Static("/files", cfg.UploadDir)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.ServerAddr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		return app.Shutdown()
	}
}

func openDB(cfg *identity.Config) (*bun.DB, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DatabaseDSN)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
}

// migrate applies the embedded schema files in lexical order. The statements
// are idempotent so re-running on boot is safe.
func migrate(ctx context.Context, db *bun.DB) error {
	migrations, err := fs.Sub(identity.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return err
		}
	}

	return nil
}

func buildNotifier(cfg *identity.Config) identity.Notifier {
	if cfg.SMTPAddr == "" && cfg.SMSEndpoint == "" {
		return identity.LogNotifier{}
	}

	return identity.NewNotifier(
		identity.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		},
		identity.SMSConfig{
			Endpoint: cfg.SMSEndpoint,
			Account:  cfg.SMSAccount,
			Token:    cfg.SMSToken,
			From:     cfg.SMSFrom,
		},
		nil,
	)
}
