package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config collects dependencies required to bootstrap the worker.
type Config struct {
	RedisOpts     asynq.RedisClientOpt
	Handler       *Handler
	Concurrency   int
	SweepInterval time.Duration
	Logger        zerolog.Logger
}

// Worker wraps the asynq server and the sweep scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    zerolog.Logger
}

// New constructs a Worker instance.
func New(cfg Config) (*Worker, error) {
	if cfg.Handler == nil {
		return nil, fmt.Errorf("worker: handler is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
		Logger: asynqLogger{cfg.Logger},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeProcessEvent, cfg.Handler.HandleProcessEvent)
	mux.HandleFunc(TaskTypeSweepOutbox, cfg.Handler.HandleSweepOutbox)

	scheduler := asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
	spec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if _, err := scheduler.Register(spec, NewSweepOutboxTask(), asynq.Queue(QueueDefault)); err != nil {
		return nil, fmt.Errorf("worker: register sweep: %w", err)
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing tasks until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	defer w.scheduler.Shutdown()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.server.Run(w.mux)
	})
	g.Go(func() error {
		<-ctx.Done()
		w.server.Shutdown()
		return ctx.Err()
	})
	return g.Wait()
}

// asynqLogger adapts zerolog to the asynq logging interface.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
