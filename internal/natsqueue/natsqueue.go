// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of uf-ulog-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package natsqueue is an alternative to internal/queue for
// deployments where producers run in a different process, or on a
// different host, than the exporter: Publisher publishes each Record
// to a NATS subject, and Subscriber feeds a local internal/queue.Queue
// from a NATS subscription callback.
//
// Connection management is a thin wrapper around *nats.Conn with
// reconnect/error handlers wired to structured logging.
package natsqueue

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/jettify/uf-ulog-go/internal/cclog"
	"github.com/jettify/uf-ulog-go/internal/queue"
	"github.com/jettify/uf-ulog-go/pkg/ulogrecord"
)

// Config holds the server address plus optional username/password or
// credentials file authentication.
type Config struct {
	Address       string `json:"address"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	CredsFilePath string `json:"creds-file-path"`
	Subject       string `json:"subject"`
}

// Connect dials cfg.Address with the configured auth method and
// reconnect/error handlers.
func Connect(cfg Config) (*nats.Conn, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("natsqueue: address is required")
	}

	var opts []nats.Option
	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFilePath))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			cclog.Warnf("natsqueue: disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		cclog.Infof("natsqueue: reconnected to %s", nc.ConnectedUrl())
	}))
	opts = append(opts, nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		cclog.Errorf("natsqueue: error: %v", err)
	}))

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("natsqueue: connect failed: %w", err)
	}
	cclog.Infof("natsqueue: connected to %s", cfg.Address)
	return nc, nil
}

// publisher is the narrow slice of *nats.Conn that Publisher needs;
// it exists so tests can exercise Publisher.TrySend's error handling
// without a live NATS server.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher is a ulogproducer.Sender that publishes each Record to a
// NATS subject. Publish is fire-and-forget (NATS publish never blocks
// on a missing subscriber), which keeps TrySend non-blocking: it can
// only report false when encoding or the underlying publish call
// fails.
type Publisher struct {
	conn    publisher
	subject string
}

// NewPublisher wraps conn, publishing to subject.
func NewPublisher(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// TrySend publishes r. It returns false (a drop, from the caller's
// perspective) only if encoding or the underlying publish call fails.
func (p *Publisher) TrySend(r ulogrecord.Record) bool {
	b, err := r.MarshalBinary()
	if err != nil {
		return false
	}
	if err := p.conn.Publish(p.subject, b); err != nil {
		cclog.Warnf("natsqueue: publish to %q failed: %v", p.subject, err)
		return false
	}
	return true
}

// Subscriber feeds a local bounded queue.Queue[Record] from a NATS
// subscription callback.
type Subscriber struct {
	sub *nats.Subscription
	q   *queue.Queue[ulogrecord.Record]
}

// Subscribe subscribes to subject on conn, decoding each message into
// a Record and delivering it into a newly created queue of the given
// capacity. Malformed messages are logged and dropped (they cannot be
// serialized Records the Publisher produced).
func Subscribe(conn *nats.Conn, subject string, capacity int) (*Subscriber, error) {
	q := queue.New[ulogrecord.Record](capacity)
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		var r ulogrecord.Record
		if err := r.UnmarshalBinary(msg.Data); err != nil {
			cclog.Warnf("natsqueue: dropping malformed message on %q: %v", subject, err)
			return
		}
		if !q.TrySend(r) {
			cclog.Warnf("natsqueue: local queue full, dropping record from %q", subject)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("natsqueue: subscribe to %q failed: %w", subject, err)
	}
	cclog.Infof("natsqueue: subscribed to %q", subject)
	return &Subscriber{sub: sub, q: q}, nil
}

// Queue returns the local queue that Exporter.PollOnce/Run should read
// from -- Subscriber itself satisfies ulogexporter.Receiver by
// delegation.
func (s *Subscriber) Queue() *queue.Queue[ulogrecord.Record] {
	return s.q
}

// TryRecv delegates to the underlying local queue.
func (s *Subscriber) TryRecv() (ulogrecord.Record, bool) {
	return s.q.TryRecv()
}

// Recv delegates to the underlying local queue.
func (s *Subscriber) Recv(ctx context.Context) (ulogrecord.Record, bool) {
	return s.q.Recv(ctx)
}

// Close unsubscribes and closes the local queue.
func (s *Subscriber) Close() error {
	s.q.Close()
	return s.sub.Unsubscribe()
}
