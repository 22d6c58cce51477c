// Package nats publishes conversation lifecycle events to NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/eunoia-wellness/companion/pkg/logger"
)

// Config locates the server. CAFile, CertFile and KeyFile are PEM paths;
// a client certificate needs both CertFile and KeyFile.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

var errHalfKeyPair = errors.New("nats client certificate needs both cert and key files")

func (c Config) options(log *logger.Logger) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name("companion"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("event bus disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("event bus reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error("event bus error", zap.Error(err))
		}),
	}

	if (c.CertFile == "") != (c.KeyFile == "") {
		return nil, errHalfKeyPair
	}
	if c.CAFile != "" {
		opts = append(opts, nats.RootCAs(c.CAFile))
	}
	if c.CertFile != "" {
		opts = append(opts, nats.ClientCert(c.CertFile, c.KeyFile))
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	return opts, nil
}

// Conn is a publisher with the connection it owns.
type Conn struct {
	*Publisher
	nc *nats.Conn
}

// Dial connects to cfg.URL and returns a publisher on the events stream,
// creating the stream when it is missing.
func Dial(ctx context.Context, cfg Config, log *logger.Logger) (*Conn, error) {
	log = logger.OrGlobal(log).Named("nats")

	opts, err := cfg.options(log)
	if err != nil {
		return nil, err
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := EnsureStream(ctx, js); err != nil {
		log.Warn("events stream unavailable, publishes may fail", zap.Error(err))
	}
	return &Conn{Publisher: NewPublisher(js, log), nc: nc}, nil
}

// Close flushes pending publishes and closes the connection.
func (c *Conn) Close() {
	if err := c.nc.Drain(); err != nil {
		c.logger.Warn("failed to drain NATS connection", zap.Error(err))
		c.nc.Close()
	}
}
