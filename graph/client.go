package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// opTimeout bounds graph operations that arrive without a deadline.
const opTimeout = 30 * time.Second

// IngestStream is the JetStream stream backing graph ingestion.
const IngestStream = "GRAPH_INGEST"

// publisher abstracts the JetStream publish path so tests can record
// messages without a broker.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// jsPublisher publishes through a JetStream context.
type jsPublisher struct {
	js jetstream.JetStream
}

func (p *jsPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.js.Publish(ctx, subject, data)
	return err
}

// Config holds the connection targets for the graph.
type Config struct {
	// NATSURL is the broker address for ingest publishes.
	NATSURL string

	// GatewayURL is the base URL of the graph query gateway.
	GatewayURL string
}

// Client is the typed projection client for standards, violations, and
// code patterns. Writes publish triples to the ingest subjects; reads go
// through the gateway's query endpoint.
type Client struct {
	cfg        Config
	nc         *nats.Conn
	pub        publisher
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client used for gateway queries.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// withPublisher swaps the publish path. Test hook.
func withPublisher(pub publisher) Option {
	return func(c *Client) { c.pub = pub }
}

// NewClient creates a disconnected client. Call Connect before use unless
// a publisher was injected.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: opTimeout},
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the broker and prepares the JetStream publish path.
// It is a no-op when a publisher is already installed.
func (c *Client) Connect(ctx context.Context) error {
	if c.pub != nil {
		return nil
	}

	nc, err := nats.Connect(c.cfg.NATSURL,
		nats.Name("standards-graph"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS at %s: %w", c.cfg.NATSURL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("creating JetStream context: %w", err)
	}

	c.nc = nc
	c.pub = &jsPublisher{js: js}

	if err := c.ensureStream(ctx, js); err != nil {
		nc.Close()
		c.nc = nil
		c.pub = nil
		return err
	}

	c.logger.Info("graph client connected", "nats_url", c.cfg.NATSURL, "gateway_url", c.cfg.GatewayURL)
	return nil
}

// ensureStream creates or updates the ingest stream so publishes are
// durable even when this service starts before the graph projector.
func (c *Client) ensureStream(ctx context.Context, js jetstream.JetStream) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      IngestStream,
		Subjects:  []string{"graph.ingest.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("ensuring stream %s: %w", IngestStream, err)
	}
	return nil
}

// Close releases the broker connection.
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
}

// Healthy reports whether the broker connection is usable.
func (c *Client) Healthy() bool {
	if c.nc == nil {
		// Injected publishers have no connection to probe.
		return c.pub != nil
	}
	return c.nc.IsConnected()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, opTimeout)
}

// publishEntity sends one entity's triples to the ingest subject.
func (c *Client) publishEntity(ctx context.Context, msg *EntityMessage) error {
	if c.pub == nil {
		return fmt.Errorf("graph client is not connected")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid entity message: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding entity %s: %w", msg.ID, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.pub.Publish(ctx, IngestSubject, data); err != nil {
		return fmt.Errorf("publishing entity %s: %w", msg.ID, err)
	}
	return nil
}

// publishDelete sends an entity removal to the delete subject.
func (c *Client) publishDelete(ctx context.Context, id string) error {
	if c.pub == nil {
		return fmt.Errorf("graph client is not connected")
	}

	data, err := json.Marshal(&DeleteMessage{ID: id, DeletedAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding delete for %s: %w", id, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.pub.Publish(ctx, DeleteSubject, data); err != nil {
		return fmt.Errorf("publishing delete for %s: %w", id, err)
	}
	return nil
}
