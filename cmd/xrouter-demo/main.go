/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/xrouter"
	"github.com/openziti/xrouter/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var configFile = flag.String("f", "", "The router configuration file to read. The embedded demo configuration is used when omitted.")

func main() {
	flag.Parse()

	env, err := loadEnvironment()

	if err != nil {
		logrus.WithError(err).Fatal("could not load environment")
	}

	level := logrus.InfoLevel

	if env.Debug {
		level = logrus.DebugLevel
	}

	pfxlog.GlobalInit(level, pfxlog.DefaultOptions().SetTrimPrefix("github.com/openziti/"))

	logger := pfxlog.Logger()

	if env.SentryDsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: env.SentryDsn}); err != nil {
			logger.WithError(err).Error("error initializing sentry client")
		} else {
			defer sentry.Flush(time.Second * 2)
		}
	}

	registries := xrouter.NewRegistries()

	recorder, err := middleware.NewMetricsRecorder("xrouter", prometheus.DefaultRegisterer)

	if err != nil {
		logger.Fatalf("error creating metrics recorder: %v", err)
	}

	if err := middleware.RegisterDefaults(&registries, recorder); err != nil {
		logger.Fatalf("error registering default middleware: %v", err)
	}

	if err := registerDemoHandlers(&registries); err != nil {
		logger.Fatalf("error registering demo handlers: %v", err)
	}

	configPath := *configFile

	if configPath == "" {
		configPath = env.ConfigFile
	} //no else, fall back to the embedded configuration

	config, err := loadConfig(configPath, &registries)

	if err != nil {
		logger.Fatalf("error loading router configuration: %v", err)
	}

	virtualHosts, err := config.BuildVirtualHosts(&registries)

	if err != nil {
		logger.Fatalf("error building routing table: %v", err)
	}

	router := xrouter.NewRouter(virtualHosts)

	router.AddErrorEventHandler(xrouter.ErrorEventHandlerF(func(event *xrouter.ErrorEvent) {
		logger.WithField("requestId", event.RequestId).Debugf("dispatch error: %v", event.Err)
	}))

	fatalHandler := xrouter.FatalEventHandlerF(func(event *xrouter.FatalEvent) {
		if env.SentryDsn != "" {
			sentry.CaptureException(event.Err)
		} //no else, sentry is optional
	})

	shim := xrouter.NewHttpShim(router,
		xrouter.WithTracingHeader(config.Options.TracingHeader),
		xrouter.WithFatalHandler(fatalHandler),
	)

	logWriter := pfxlog.Logger().Writer()

	server := &http.Server{
		Addr:           env.ListenAddress,
		Handler:        shim,
		WriteTimeout:   config.Options.WriteTimeout,
		ReadTimeout:    config.Options.ReadTimeout,
		IdleTimeout:    config.Options.IdleTimeout,
		MaxHeaderBytes: config.Options.MaxHeaderBytes,
		ErrorLog:       log.New(logWriter, "", 0),
	}

	adminServer := newAdminServer(env.AdminAddress)

	go func() {
		logger.Infof("admin endpoint listening on %s", env.AdminAddress)

		if err := adminServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("error running admin endpoint: %v", err)
		}
	}()

	go func() {
		logger.Infof("xrouter demo listening on %s", env.ListenAddress)

		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("error running server: %v", err)
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			reload(configPath, &registries, router)
			continue
		}

		logger.Infof("received %v, shutting down", sig)
		break
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	_ = adminServer.Shutdown(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("error during shutdown: %v", err)
	}

	_ = logWriter.Close()
}

func loadConfig(path string, registries *xrouter.Registries) (*xrouter.RouterConfig, error) {
	var config *xrouter.RouterConfig
	var err error

	if path == "" {
		config, err = xrouter.LoadRouterConfig([]byte(defaultConfigYaml), "")
	} else {
		config, err = xrouter.LoadRouterConfigFile(path, "")
	}

	if err != nil {
		return nil, err
	}

	if err := config.Validate(registries); err != nil {
		return nil, err
	}

	return config, nil
}

// reload rebuilds the routing table from the configuration file and swaps it
// in. On any failure the running table is left untouched, so in-flight and
// subsequent requests keep routing against a complete table.
func reload(path string, registries *xrouter.Registries, router *xrouter.Router) {
	logger := pfxlog.Logger()

	if path == "" {
		logger.Warn("no configuration file to reload, running on the embedded configuration")
		return
	}

	config, err := loadConfig(path, registries)

	if err != nil {
		logger.Errorf("reload failed, keeping current routing table: %v", err)
		return
	}

	virtualHosts, err := config.BuildVirtualHosts(registries)

	if err != nil {
		logger.Errorf("reload failed, keeping current routing table: %v", err)
		return
	}

	router.ResetVirtualHosts(virtualHosts)
	logger.Infof("configuration reloaded from [%s]", path)
}

func newAdminServer(address string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok\n"))
	})

	return &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  time.Second * 5,
		WriteTimeout: time.Second * 10,
	}
}
