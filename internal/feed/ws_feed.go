package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/platform/venue"
)

const (
	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Decoder turns one raw frame into a log entry.
type Decoder[T any] func(raw []byte, receivedAt time.Time) (T, error)

// Conn is the slice of venue.WSClient the feed drives.
type Conn interface {
	Connect(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
	Close() error
}

// Dialer creates a fresh connection that hands frames to onFrame.
type Dialer func(onFrame venue.MessageHandler) Conn

// WSFeed keeps one venue stream connected and appends every decoded frame
// to its Log. A dropped connection flips the log non-live and is redialed
// with backoff; the log itself is carried forward untouched.
type WSFeed[T any] struct {
	log    *Log[T]
	dial   Dialer
	decode Decoder[T]
	now    func() time.Time
	logger *slog.Logger

	minDelay  time.Duration
	maxDelay  time.Duration
	closeOnce sync.Once
	done      chan struct{}
}

// NewWSFeed creates a feed writing into log.
func NewWSFeed[T any](log *Log[T], dial Dialer, decode Decoder[T], logger *slog.Logger) *WSFeed[T] {
	return &WSFeed[T]{
		log:      log,
		dial:     dial,
		decode:   decode,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "feed"), slog.String("feed", log.Name())),
		minDelay: reconnectDelay,
		maxDelay: maxReconnectDelay,
		done:     make(chan struct{}),
	}
}

// NewFillFeed listens on the executions stream.
func NewFillFeed(log *Log[domain.FillEvent], wsURL, apiKey string, logger *slog.Logger) *WSFeed[domain.FillEvent] {
	return NewWSFeed(log, venueDialer(wsURL, apiKey), venue.DecodeExecution, logger)
}

// NewQuoteFeed listens on the ticker tape.
func NewQuoteFeed(log *Log[domain.Quote], wsURL, apiKey string, logger *slog.Logger) *WSFeed[domain.Quote] {
	decode := func(raw []byte, _ time.Time) (domain.Quote, error) { return venue.DecodeQuote(raw) }
	return NewWSFeed(log, venueDialer(wsURL, apiKey), decode, logger)
}

func venueDialer(wsURL, apiKey string) Dialer {
	return func(onFrame venue.MessageHandler) Conn {
		return venue.NewWSClient(wsURL, apiKey, onFrame)
	}
}

// Log returns the log this feed writes to.
func (f *WSFeed[T]) Log() *Log[T] { return f.log }

// Run keeps the stream connected until ctx is cancelled or Close is called.
func (f *WSFeed[T]) Run(ctx context.Context) error {
	delay := f.minDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		connected, err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}
		if connected {
			delay = f.minDelay
		}
		if err != nil {
			f.logger.Warn("feed disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Duration("backoff", delay),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.maxDelay {
			delay = f.maxDelay
		}
	}
}

// Close stops the feed.
func (f *WSFeed[T]) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// runConnection dials once and blocks until the connection ends. It reports
// whether the dial succeeded so the caller can reset its backoff.
func (f *WSFeed[T]) runConnection(ctx context.Context) (bool, error) {
	conn := f.dial(f.handleFrame)

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := conn.Connect(dialCtx)
	cancel()
	if err != nil {
		return false, err
	}
	defer conn.Close()

	f.log.SetLive(true, f.now())
	f.logger.Info("feed connected", slog.Int("buffered", f.log.Len()))

	select {
	case <-conn.Done():
		err = conn.Err()
	case <-ctx.Done():
	case <-f.done:
	}
	f.log.SetLive(false, f.now())
	return true, err
}

func (f *WSFeed[T]) handleFrame(raw []byte) {
	at := f.now()
	v, err := f.decode(raw, at)
	if err != nil {
		f.logger.Warn("dropping malformed frame",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(raw)),
		)
		return
	}
	f.log.Append(v, at)
}
