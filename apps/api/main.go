package main

import (
	"context"
	_ "expvar" // Register the expvar handlers
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Register the pprof handlers
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
)

func main() {
	if err := run(); err != nil {
		log.Printf("error: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	container := newContainer(shutdown)

	return container.Invoke(func(conf *core.Config, logger core.Logger, cls *closers, app echoapi.Server) error {
		defer cls.closeAll(logger)
		logger.Info(fmt.Sprintf("Application initializing : version %q (%s)", conf.Build, conf.Env))

		// Start Debug Service
		//
		// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
		// /debug/vars - Added to the default mux by importing the expvar package.
		go func() {
			logger.Info("Debug service listening on " + conf.Server.DebugAddress)
			if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
				logger.Error(fmt.Sprintf("Debug service closed: %v", err), err)
			}
		}()

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("API listening on " + conf.Server.Address)
			serverErrors <- app.Start()
		}()

		select {
		case err := <-serverErrors:
			return errors.Wrap(err, "server error")

		case sig := <-shutdown:
			logger.Info(fmt.Sprintf("%v : Start shutdown", sig))

			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			if err := app.Stop(ctx); err != nil {
				return errors.Wrap(err, "could not stop server gracefully")
			}
			logger.Info(fmt.Sprintf("%v : Completed shutdown", sig))
		}
		return nil
	})
}
