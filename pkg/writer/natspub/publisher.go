// Package natspub publishes classified scans as JSON messages on NATS, with
// OpenTelemetry trace context carried in the message headers.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/ChrisMcGann/ScanKey/pkg/core"
	"github.com/ChrisMcGann/ScanKey/pkg/filter"
)

// DefaultSubject is used when Options.Subject is empty.
const DefaultSubject = "scankey.scans"

// RunIDHeader names the header that carries the run id.
const RunIDHeader = "Scankey-Run-Id"

// Message is the JSON payload of one published scan.
type Message struct {
	RunID       string           `json:"run_id"`
	Scan        *core.ScanRecord `json:"scan"`
	MZs         []float64        `json:"mzs,omitempty"`
	Intensities []float64        `json:"intensities,omitempty"`
}

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Options configures a Publisher.
type Options struct {
	Subject string
	RunID   string
	// IncludePeaks adds the (filtered) ion arrays to every message.
	IncludePeaks bool
	Filter       filter.Config
}

// Publisher is a SpectrumSink that publishes every scan to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	owned   bool
	opts    Options
	subject string
	count   int
}

// New wraps an existing connection. The caller keeps ownership of nc.
func New(nc *nats.Conn, opts Options) *Publisher {
	subject := opts.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, opts: opts, subject: subject}
}

// Connect dials url and returns a Publisher that closes the connection on
// Close.
func Connect(url string, opts Options) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("scankey"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	p := New(nc, opts)
	p.owned = true
	return p, nil
}

// Subject returns the subject scans are published on.
func (p *Publisher) Subject() string {
	return p.subject
}

// Count returns the number of scans published.
func (p *Publisher) Count() int {
	return p.count
}

// WriteScan publishes rec. Trace context from ctx is injected into the
// message headers.
func (p *Publisher) WriteScan(ctx context.Context, rec *core.ScanRecord, mzs, intensities []float64) error {
	m := Message{RunID: p.opts.RunID, Scan: rec}
	if p.opts.IncludePeaks {
		var err error
		m.MZs, m.Intensities, err = p.opts.Filter.ApplyArrays(mzs, intensities)
		if err != nil {
			return fmt.Errorf("failed to filter scan %d: %w", rec.ScanNumber, err)
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode scan %d: %w", rec.ScanNumber, err)
	}
	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	if p.opts.RunID != "" {
		msg.Header.Set(RunIDHeader, p.opts.RunID)
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish scan %d: %w", rec.ScanNumber, err)
	}
	p.count++
	return nil
}

// Close flushes pending messages and closes the connection if the
// Publisher opened it.
func (p *Publisher) Close() error {
	if err := p.nc.Flush(); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	if p.owned {
		p.nc.Close()
	}
	return nil
}

// Subscribe decodes published scans and passes them to handler along with
// the propagated trace context. Malformed messages are dropped.
func Subscribe(nc *nats.Conn, subject string, handler func(context.Context, Message)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
		handler(ctx, m)
	})
}
