package bootstrap

import (
	"context"
	"os"
	"sync"
	"time"

	"calndr/adapter/in/worker"
	"calndr/config"
	"calndr/pkg/logger"
	"calndr/pkg/ratelimit"

	"github.com/rs/zerolog"
)

type Worker struct {
	pool               *worker.Pool
	deps               *Dependencies
	ctx                context.Context
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
	zlog               zerolog.Logger
	batchSyncScheduler *worker.BatchSyncScheduler
	retrySyncScheduler *worker.RetrySyncScheduler
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	custodyProcessor := worker.NewCustodyProcessor(deps.Generator, deps.TemplateRepo)
	syncLimiter := ratelimit.NewSlidingWindowLimiter(deps.Redis, worker.SyncJobsPerSecond, worker.SyncJobsPerSecond*2)
	syncProcessor := worker.NewSyncProcessor(deps.SyncPipeline, syncLimiter)
	integrityProcessor := worker.NewIntegrityProcessor(deps.Auditor)

	handler := worker.NewHandler(custodyProcessor, syncProcessor, integrityProcessor)

	defaultConfig := worker.DefaultPoolConfig()
	poolConfig := &worker.PoolConfig{
		MinWorkers:         cfg.WorkerMin,
		MaxWorkers:         cfg.WorkerMax,
		QueueSize:          cfg.WorkerQueueSize,
		ScaleUpThreshold:   0.8,
		ScaleDownThreshold: 0.2,
		ScaleInterval:      cfg.WorkerScaleInterval,
		IdleTimeout:        cfg.WorkerIdleTimeout,
		JobTimeout:         defaultConfig.JobTimeout,
		JobTimeoutByType:   defaultConfig.JobTimeoutByType,
	}
	if poolConfig.MinWorkers == 0 {
		poolConfig.MinWorkers = 2
	}
	if poolConfig.MaxWorkers == 0 {
		poolConfig.MaxWorkers = 8
	}
	if poolConfig.QueueSize == 0 {
		poolConfig.QueueSize = 1000
	}
	if poolConfig.ScaleInterval == 0 {
		poolConfig.ScaleInterval = defaultConfig.ScaleInterval
	}
	if poolConfig.IdleTimeout == 0 {
		poolConfig.IdleTimeout = defaultConfig.IdleTimeout
	}

	pool := worker.NewPool(handler, poolConfig, zlog)

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		pool:   pool,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.SyncPipeline != nil {
		interval := time.Duration(cfg.SyncBatchIntervalMin) * time.Minute
		w.batchSyncScheduler = worker.NewBatchSyncScheduler(deps.SyncPipeline, interval)
		logger.Info("Batch sync scheduler configured (interval=%v)", interval)
	}
	if deps.SyncRepo != nil && deps.SyncPipeline != nil {
		w.retrySyncScheduler = worker.NewRetrySyncScheduler(deps.SyncRepo, deps.SyncPipeline)
		logger.Info("Retry sync scheduler configured")
	}

	return w, cleanup, nil
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pool.Start()
	}()

	if w.batchSyncScheduler != nil {
		w.batchSyncScheduler.Start()
		w.zlog.Info().Msg("Started batch sync scheduler")
	}
	if w.retrySyncScheduler != nil {
		w.retrySyncScheduler.Start()
		w.zlog.Info().Msg("Started retry sync scheduler")
	}

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()

	if w.batchSyncScheduler != nil {
		w.batchSyncScheduler.Stop()
	}
	if w.retrySyncScheduler != nil {
		w.retrySyncScheduler.Stop()
	}

	w.pool.Stop()
	w.wg.Wait()
}

func (w *Worker) Submit(msg *worker.Message) bool {
	if msg.IsPriority() {
		return w.pool.SubmitPriority(msg)
	}
	return w.pool.Submit(msg)
}

func (w *Worker) SubmitPriority(msg *worker.Message) bool {
	return w.pool.SubmitPriority(msg)
}

func (w *Worker) GetMetrics() worker.PoolMetrics {
	return w.pool.GetMetrics()
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
