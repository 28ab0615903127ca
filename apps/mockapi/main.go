package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/barakah/apps/mockapi/echo"
	"github.com/trezcool/barakah/core"
	logsvc "github.com/trezcool/barakah/services/logger"
)

const (
	seedPassword    = "password"
	shutdownTimeout = 5 * time.Second
)

// Emulates the upstream APIs locally:
//
//	complaints API: http://localhost:8000/api
//	school API:     http://localhost:8000/school
//
// Every seeded account (admin@, org@, employee@, teacher@barakah.test) logs in with "password".
func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "MOCKAPI : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)
	defer logger.Info("Application stopped")

	if err := run(conf, logger); err != nil {
		logger.Fatal(fmt.Sprintf("mock API failed: %v", err), err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	data := echoapi.NewData()
	if err := echoapi.Seed(data, seedPassword); err != nil {
		return errors.Wrap(err, "seeding data")
	}

	server := echoapi.NewServer(&echoapi.Options{
		Address:   conf.Mock.Addr,
		AppName:   conf.AppName,
		Debug:     conf.Debug,
		SecretKey: conf.Mock.SecretKey,
		TokenTTL:  conf.Mock.JWTExpirationDelta,
		Data:      data,
		Logger:    logger,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Application initializing : version %q, listening on %s", conf.Build, conf.Mock.Addr))
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}
