package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/tradevault/platform/internal/app/domain/exchange"
	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/domain/trade"
	"github.com/tradevault/platform/internal/app/services/exchanges"
	"github.com/tradevault/platform/internal/app/services/trades"
	"github.com/tradevault/platform/internal/app/system"
	"github.com/tradevault/platform/pkg/logger"
)

// Streamer delivers closed trades from an exchange's live fill stream,
// calling emit for each one until the context ends.
type Streamer interface {
	Stream(ctx context.Context, conn exchange.Connection, creds exchange.Credentials, emit func(trade.Trade) error) error
}

// defaultStreamEndpoints map exchange names to connector websocket URLs.
var defaultStreamEndpoints = map[string]string{
	"binance":  "wss://connector.tradevault.io/binance/v1/fills",
	"bybit":    "wss://connector.tradevault.io/bybit/v1/fills",
	"coinbase": "wss://connector.tradevault.io/coinbase/v1/fills",
	"kraken":   "wss://connector.tradevault.io/kraken/v1/fills",
	"okx":      "wss://connector.tradevault.io/okx/v1/fills",
}

// WSStreamer consumes the connector fill stream over websocket, reconnecting
// on transient failures.
type WSStreamer struct {
	endpoints map[string]string
	dialer    *websocket.Dialer
	log       *logger.Logger
}

var _ Streamer = (*WSStreamer)(nil)

// NewWSStreamer creates a streamer with the default connector endpoints.
func NewWSStreamer(log *logger.Logger) *WSStreamer {
	if log == nil {
		log = logger.NewDefault("sync-stream")
	}
	endpoints := make(map[string]string, len(defaultStreamEndpoints))
	for name, u := range defaultStreamEndpoints {
		endpoints[name] = u
	}
	return &WSStreamer{
		endpoints: endpoints,
		dialer:    websocket.DefaultDialer,
		log:       log,
	}
}

// SetEndpoint overrides the stream URL for an exchange.
func (w *WSStreamer) SetEndpoint(exchangeName, wsURL string) {
	w.endpoints[exchangeName] = wsURL
}

// Stream reads fills until ctx ends, reconnecting after transient errors.
func (w *WSStreamer) Stream(ctx context.Context, conn exchange.Connection, creds exchange.Credentials, emit func(trade.Trade) error) error {
	wsURL, ok := w.endpoints[conn.Exchange]
	if !ok {
		return fmt.Errorf("no stream endpoint for exchange %q", conn.Exchange)
	}

	for {
		if err := w.consume(ctx, wsURL, conn, creds, emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.WithField("connection_id", conn.ID).WithError(err).Warn("fill stream disconnected")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			w.log.WithField("connection_id", conn.ID).Info("fill stream reconnecting")
		}
	}
}

func (w *WSStreamer) consume(ctx context.Context, wsURL string, conn exchange.Connection, creds exchange.Credentials, emit func(trade.Trade) error) error {
	ws, _, err := w.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	auth := fmt.Sprintf(`{"op":"auth","api_key":%q,"signature":%q}`,
		creds.APIKey, sign(creds.APISecret, creds.APIKey))
	if err := ws.WriteMessage(websocket.TextMessage, []byte(auth)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		payload := gjson.ParseBytes(msg)
		if payload.Get("op").String() != "fill" {
			continue
		}

		t, err := parseTrade(conn, payload.Get("trade"))
		if err != nil {
			w.log.WithError(err).Warn("skipping malformed fill")
			continue
		}
		if err := emit(t); err != nil {
			return err
		}
	}
}

var _ system.Service = (*StreamWorker)(nil)

// StreamWorker claims pending realtime sessions and keeps one live stream
// per session until shutdown.
type StreamWorker struct {
	service   *Service
	exchanges *exchanges.Service
	trades    *trades.Service
	streamer  Streamer
	log       *logger.Logger
	interval  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	active  map[string]bool
}

// NewStreamWorker creates a lifecycle-managed realtime stream worker.
func NewStreamWorker(service *Service, exchangeSvc *exchanges.Service, tradeSvc *trades.Service, streamer Streamer, log *logger.Logger) *StreamWorker {
	if log == nil {
		log = logger.NewDefault("sync-stream")
	}
	return &StreamWorker{
		service:   service,
		exchanges: exchangeSvc,
		trades:    tradeSvc,
		streamer:  streamer,
		log:       log,
		interval:  5 * time.Second,
		active:    make(map[string]bool),
	}
}

func (w *StreamWorker) Name() string { return "sync-stream" }

func (w *StreamWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.tick(runCtx)
			}
		}
	}()

	w.log.Info("stream worker started")
	return nil
}

func (w *StreamWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.log.Info("stream worker stopped")
	return nil
}

func (w *StreamWorker) tick(ctx context.Context) {
	pending, err := w.service.ListPending(ctx)
	if err != nil {
		w.log.WithError(err).Warn("stream worker tick failed")
		return
	}

	for _, sess := range pending {
		if sess.Kind != syncdomain.KindRealtime {
			continue
		}

		w.mu.Lock()
		already := w.active[sess.ID]
		if !already {
			w.active[sess.ID] = true
		}
		w.mu.Unlock()
		if already {
			continue
		}

		if _, err := w.service.MarkRunning(ctx, sess.ID); err != nil {
			w.log.WithError(err).Warn("could not claim realtime session")
			w.release(sess.ID)
			continue
		}

		w.wg.Add(1)
		go func(sess syncdomain.Session) {
			defer w.wg.Done()
			defer w.release(sess.ID)
			w.run(ctx, sess)
		}(sess)
	}
}

func (w *StreamWorker) release(sessionID string) {
	w.mu.Lock()
	delete(w.active, sessionID)
	w.mu.Unlock()
}

// run streams fills into the journal until shutdown or a fatal error.
func (w *StreamWorker) run(ctx context.Context, sess syncdomain.Session) {
	log := w.log.WithField("session_id", sess.ID).WithField("connection_id", sess.ConnectionID)

	conn, err := w.exchanges.Get(ctx, sess.ConnectionID)
	if err != nil {
		w.finishWithError(sess.ID, err, log)
		return
	}
	creds, err := w.exchanges.Credentials(ctx, sess.ConnectionID)
	if err != nil {
		w.finishWithError(sess.ID, err, log)
		return
	}

	imported := 0
	err = w.streamer.Stream(ctx, conn, creds, func(t trade.Trade) error {
		_, fresh, err := w.trades.CreateImported(ctx, t)
		if err != nil {
			return err
		}
		if fresh {
			imported++
		}
		return nil
	})

	// Shutdown closes the stream; that is a normal completion.
	finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Error("realtime stream failed")
		if _, failErr := w.service.Fail(finishCtx, sess.ID, err); failErr != nil {
			log.WithError(failErr).Warn("could not record stream failure")
		}
		return
	}

	if _, err := w.service.Complete(finishCtx, sess.ID, imported); err != nil {
		log.WithError(err).Warn("could not complete realtime session")
		return
	}
	log.WithField("trades_imported", imported).Info("realtime session closed")
}

func (w *StreamWorker) finishWithError(sessionID string, cause error, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.WithError(cause).Error("realtime session failed")
	if _, err := w.service.Fail(ctx, sessionID, cause); err != nil {
		log.WithError(err).Warn("could not record stream failure")
	}
}
