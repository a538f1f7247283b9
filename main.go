// SPDX-License-Identifier: GPL-2.0-only

package main

// This project is GPL-2.0, but this file contains code from generic-device-plugin.
// Original license notice below.
//
// Copyright 2020 the generic-device-plugin authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MatthiasValvekens/xhci-abi/guestmem"
	"github.com/MatthiasValvekens/xhci-abi/inspector"
	"github.com/efficientgo/core/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
)

const (
	logLevelAll   = "all"
	logLevelDebug = "debug"
	logLevelInfo  = "info"
	logLevelWarn  = "warn"
	logLevelError = "error"
	logLevelNone  = "none"
)

var (
	availableLogLevels = strings.Join([]string{
		logLevelAll,
		logLevelDebug,
		logLevelInfo,
		logLevelWarn,
		logLevelError,
		logLevelNone,
	}, ", ")
)

func newLogger(logLevel string) (log.Logger, error) {
	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	switch logLevel {
	case logLevelAll:
		logger = level.NewFilter(logger, level.AllowAll())
	case logLevelDebug:
		logger = level.NewFilter(logger, level.AllowDebug())
	case logLevelInfo:
		logger = level.NewFilter(logger, level.AllowInfo())
	case logLevelWarn:
		logger = level.NewFilter(logger, level.AllowWarn())
	case logLevelError:
		logger = level.NewFilter(logger, level.AllowError())
	case logLevelNone:
		logger = level.NewFilter(logger, level.AllowNone())
	default:
		return nil, fmt.Errorf("log level %v unknown; possible values are: %s", logLevel, availableLogLevels)
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	return logger, nil
}

func loadGuestMemory(specs []imageSpec, logger log.Logger) (*guestmem.Map, error) {
	images := make([]*guestmem.Image, 0, len(specs))
	for _, s := range specs {
		img, err := guestmem.LoadImage(os.DirFS(filepath.Dir(s.Path)), filepath.Base(s.Path), s.Base, logger)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return guestmem.NewMap(images...)
}

// Main is the principal function for the binary, wrapped only by `main` for convenience.
func Main() error {
	if err := initConfig(); err != nil {
		return err
	}

	regions, err := getConfiguredRegions()
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		return fmt.Errorf("at least one region must be specified")
	}
	imageSpecs, err := getConfiguredImages()
	if err != nil {
		return err
	}
	if len(imageSpecs) == 0 {
		return fmt.Errorf("at least one memory image must be specified")
	}

	logger, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	interval := viper.GetDuration("interval")
	if interval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %v", interval)
	}

	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mem, err := loadGuestMemory(imageSpecs, logger)
	if err != nil {
		return errors.Wrap(err, "failed to set up guest memory")
	}
	in, err := inspector.NewInspector(mem, regions, log.With(logger, "component", "inspector"), r)
	if err != nil {
		return errors.Wrap(err, "failed to set up inspector")
	}

	if viper.GetBool("once") {
		report, err := in.Scan()
		if report != nil {
			_ = logger.Log("msg", "scan finished", "records", len(report.Records), "unknown_trbs", report.Unknown)
		}
		return err
	}

	var g run.Group
	{
		// Run the HTTP server.
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.Handle("/metrics", promhttp.HandlerFor(r, promhttp.HandlerOpts{}))
		listen := viper.GetString("listen")
		l, err := net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %v", listen, err)
		}

		g.Add(func() error {
			if err := http.Serve(l, mux); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server exited unexpectedly: %v", err)
			}
			return nil
		}, func(error) {
			_ = l.Close()
		})
	}

	if addr := viper.GetString("grpc-listen"); addr != "" {
		if err := in.ServeHealth(&g, addr); err != nil {
			return err
		}
	}

	{
		// Exit gracefully on SIGINT and SIGTERM.
		term := make(chan os.Signal, 1)
		signal.Notify(term, syscall.SIGINT, syscall.SIGTERM)
		cancel := make(chan struct{})
		g.Add(func() error {
			for {
				select {
				case <-term:
					_ = logger.Log("msg", "caught interrupt; gracefully cleaning up; see you next time!")
					return nil
				case <-cancel:
					return nil
				}
			}
		}, func(error) {
			close(cancel)
		})
	}

	in.AddScanJob(&g, interval)
	_ = logger.Log("msg", "Starting xhci-inspector", "regions", len(regions), "interval", interval)

	return g.Run()
}

func main() {
	if err := Main(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Execution failed: %v\n", err)
		os.Exit(1)
	}
}
