// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ulog-exporter is a reference binary wiring Registry, the
// NATS queue transport, and Exporter together: it subscribes to a NATS
// subject carrying Records published by one or more producer
// processes, and drains them into a .ulg file until interrupted.
//
// Producer and Exporter need not live in the same process; this binary
// is the Exporter side of such a split deployment, the Producer side
// being internal/natsqueue.Publisher wrapped around a
// ulogproducer.Producer in whatever process generates telemetry.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jettify/uf-ulog-go/internal/cclog"
	"github.com/jettify/uf-ulog-go/internal/natsqueue"
	"github.com/jettify/uf-ulog-go/internal/ulogconfig"
	"github.com/jettify/uf-ulog-go/internal/ulogmetrics"
	"github.com/jettify/uf-ulog-go/pkg/ulogexporter"
	"github.com/jettify/uf-ulog-go/pkg/ulogregistry"
)

// fileConfig is the on-disk config.json shape: the three
// ulogconfig.Config knobs, the topic table, and this binary's own
// NATS/output/metrics settings, all flattened into one file so
// operators have a single place to look.
type fileConfig struct {
	ulogconfig.Config
	Topics      []ulogregistry.MessageMeta `json:"topics"`
	Nats        natsqueue.Config           `json:"nats"`
	OutputFile  string                     `json:"output-file"`
	MetricsAddr string                     `json:"metrics-addr"`
}

func main() {
	var flagConfigFile string
	var flagLogLevel string
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Load configuration from `config.json`")
	flag.StringVar(&flagLogLevel, "log-level", "info", "Minimum log level: debug, info, warn, err")
	flag.Parse()

	cclog.SetLevel(flagLogLevel)

	f, err := os.Open(flagConfigFile)
	if err != nil {
		cclog.Fatal(err)
	}
	raw, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		cclog.Fatal(err)
	}

	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		cclog.Fatal(err)
	}
	cfg := ulogconfig.MustLoad(raw)

	reg, err := ulogregistry.New(fc.Topics...)
	if err != nil {
		cclog.Fatal(err)
	}

	exporterMetrics := ulogmetrics.NewExporterMetrics(prometheus.DefaultRegisterer, "exporter")

	nc, err := natsqueue.Connect(fc.Nats)
	if err != nil {
		cclog.Fatal(err)
	}
	defer nc.Close()

	sub, err := natsqueue.Subscribe(nc, fc.Nats.Subject, cfg.QueueCapacity)
	if err != nil {
		cclog.Fatal(err)
	}

	out, err := os.Create(fc.OutputFile)
	if err != nil {
		cclog.Fatal(err)
	}
	defer out.Close()

	exp := ulogexporter.New(reg, sub, out, cfg.MaxMultiIDs, cfg.MaxStreams, ulogexporter.WithMetrics(exporterMetrics))
	if err := exp.EmitStartup(uint64(time.Now().UnixMicro())); err != nil {
		cclog.Fatal(err)
	}

	if fc.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			cclog.Infof("ulog-exporter: metrics listening at %s", fc.MetricsAddr)
			if err := http.ListenAndServe(fc.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				cclog.Errorf("ulog-exporter: metrics server: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := exp.Run(ctx); err != nil {
			cclog.Errorf("ulog-exporter: exporter stopped: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	cclog.Info("ulog-exporter: shutting down")
	cancel()
	sub.Close()
	wg.Wait()
	cclog.Infof("ulog-exporter: dropped %d streams over lifetime", exp.DroppedStreams())
}
