package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/tradevault/platform/internal/app/domain/exchange"
	syncdomain "github.com/tradevault/platform/internal/app/domain/sync"
	"github.com/tradevault/platform/internal/app/metrics"
	"github.com/tradevault/platform/internal/app/services/exchanges"
	"github.com/tradevault/platform/internal/app/services/trades"
	"github.com/tradevault/platform/internal/app/system"
	"github.com/tradevault/platform/pkg/logger"
)

var _ system.Service = (*Runner)(nil)

// Runner drains pending historical sync sessions. Realtime sessions are
// handled by the stream worker.
type Runner struct {
	service   *Service
	exchanges *exchanges.Service
	trades    *trades.Service
	importer  Importer
	log       *logger.Logger
	interval  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRunner creates a lifecycle-managed sync runner.
func NewRunner(service *Service, exchangeSvc *exchanges.Service, tradeSvc *trades.Service, importer Importer, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewDefault("sync-runner")
	}
	return &Runner{
		service:   service,
		exchanges: exchangeSvc,
		trades:    tradeSvc,
		importer:  importer,
		log:       log,
		interval:  5 * time.Second,
	}
}

func (r *Runner) Name() string { return "sync-runner" }

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("sync runner started")
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("sync runner stopped")
	return nil
}

func (r *Runner) tick(ctx context.Context) {
	pending, err := r.service.ListPending(ctx)
	if err != nil {
		r.log.WithError(err).Warn("sync runner tick failed")
		return
	}

	for _, sess := range pending {
		if sess.Kind != syncdomain.KindHistorical {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.execute(ctx, sess)
	}
}

// execute runs a single historical import session end to end.
func (r *Runner) execute(ctx context.Context, sess syncdomain.Session) {
	log := r.log.WithField("session_id", sess.ID).WithField("connection_id", sess.ConnectionID)

	if _, err := r.service.MarkRunning(ctx, sess.ID); err != nil {
		log.WithError(err).Warn("could not claim sync session")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	imported, err := r.runImport(ctx, sess)
	if err != nil {
		log.WithError(err).Error("sync session failed")
		if _, failErr := r.service.Fail(ctx, sess.ID, err); failErr != nil {
			log.WithError(failErr).Warn("could not record sync failure")
		}
		if _, statusErr := r.exchanges.SetStatus(ctx, sess.ConnectionID, exchange.StatusError, err.Error()); statusErr != nil {
			log.WithError(statusErr).Warn("could not flag connection")
		}
		metrics.RecordSyncSession("failed")
		return
	}

	if _, err := r.service.Complete(ctx, sess.ID, imported); err != nil {
		log.WithError(err).Warn("could not complete sync session")
		return
	}
	if err := r.exchanges.MarkSynced(ctx, sess.ConnectionID, time.Now()); err != nil {
		log.WithError(err).Warn("could not stamp last sync time")
	}
	metrics.RecordSyncSession("completed")
	metrics.RecordTradesImported(imported)
	log.WithField("trades_imported", imported).Info("sync session completed")
}

func (r *Runner) runImport(ctx context.Context, sess syncdomain.Session) (int, error) {
	conn, err := r.exchanges.Get(ctx, sess.ConnectionID)
	if err != nil {
		return 0, err
	}
	creds, err := r.exchanges.Credentials(ctx, sess.ConnectionID)
	if err != nil {
		return 0, err
	}

	fetched, err := r.importer.FetchTrades(ctx, conn, creds, conn.LastSyncAt)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, t := range fetched {
		_, fresh, err := r.trades.CreateImported(ctx, t)
		if err != nil {
			return imported, err
		}
		if fresh {
			imported++
		}
	}
	return imported, nil
}
