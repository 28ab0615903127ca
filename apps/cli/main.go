package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/barakah/core"
	"github.com/trezcool/barakah/core/apiclient"
	"github.com/trezcool/barakah/core/auth"
	"github.com/trezcool/barakah/core/complaint"
	"github.com/trezcool/barakah/core/school"
	"github.com/trezcool/barakah/core/session"
	logsvc "github.com/trezcool/barakah/services/logger"
	navsvc "github.com/trezcool/barakah/services/navigator"
	"github.com/trezcool/barakah/storage/database"
	sqlxrepos "github.com/trezcool/barakah/storage/database/sqlx"
	"github.com/trezcool/barakah/storage/filestore"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "BARAKAH : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	if err := run(conf, logger); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	store, closeStore, err := openStore(conf)
	if err != nil {
		return errors.Wrap(err, "opening session store")
	}
	defer closeStore()

	cli, err := newCommandLine(conf, store, logger, navsvc.NewConsole(os.Stderr), prometheus.NewRegistry())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.rootCmd().ExecuteContext(ctx)
}

// newCommandLine wires the stores of both APIs over one session.
func newCommandLine(conf *core.Config, store session.Store, logger core.Logger, nav core.Navigator, reg *prometheus.Registry) (*commandLine, error) {
	sessions := session.NewManager(store, logger)
	validate, _ := core.NewValidator()

	opts := []apiclient.Option{
		apiclient.WithLogger(logger),
		apiclient.WithValidator(validate),
		apiclient.WithRegisterer(reg),
		apiclient.WithPerPage(conf.API.PerPage),
	}
	complaintsClient, err := apiclient.New(conf.API.ComplaintsBaseURL, sessions, nav, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating complaints API client")
	}
	schoolClient, err := apiclient.New(conf.API.SchoolBaseURL, sessions, nav, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating school API client")
	}

	return &commandLine{
		auth:       auth.NewService(complaintsClient, sessions, nav, logger, validate),
		complaints: complaint.NewService(complaintsClient, sessions),
		school:     school.NewService(schoolClient),
		sessions:   sessions,
		metrics:    reg,
	}, nil
}

// openStore returns the session store selected by `session.driver`.
func openStore(conf *core.Config) (session.Store, func(), error) {
	switch conf.Session.Driver {
	case "", "file":
		return filestore.New(conf.Session.Path), func() {}, nil
	case database.DriverPostgres, database.DriverSQLite:
		db, err := database.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sqlxrepos.NewSessionStore(db), func() { _ = db.Close() }, nil
	}
	return nil, nil, errors.Errorf("unsupported session driver %q", conf.Session.Driver)
}
