package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/AntonStoeckl/library-circulation/circulation"
	"github.com/AntonStoeckl/library-circulation/circulation/logadapters"
	"github.com/AntonStoeckl/library-circulation/circulation/oteladapters"
	"github.com/AntonStoeckl/library-circulation/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation/engine/copyregistry"
	"github.com/AntonStoeckl/library-circulation/engine/fineledger"
	"github.com/AntonStoeckl/library-circulation/engine/loanledger"
	"github.com/AntonStoeckl/library-circulation/engine/shell"
	"github.com/AntonStoeckl/library-circulation/engine/shell/config"
	"github.com/AntonStoeckl/library-circulation/engine/shell/notification"
	"github.com/AntonStoeckl/library-circulation/engine/shell/observable"
	"github.com/AntonStoeckl/library-circulation/httpapi"
)

const (
	logMsgStoreOpened     = "store opened"
	logMsgNotifierRabbit  = "publishing notifications to rabbitmq"
	logMsgNotifierLogging = "no broker configured, notifications are only logged"
	logAttrAdapter        = "adapter"
	logAttrSchema         = "schema"
	logAttrExchange       = "exchange"
	logAttrTracing        = "tracing"
	logAttrMetrics        = "metrics"
)

type appLogger interface {
	circulation.Logger
	circulation.ContextualLogger
}

// runtime holds the process-wide dependencies of a command.
type runtime struct {
	cfg       config.Config
	logger    appLogger
	providers *config.ObservabilityProviders
	store     *postgresengine.Store
	notifier  loanledger.Notifier
	closers   []func() error
}

func newLogger(cfg config.Config) (appLogger, error) {
	if cfg.LogFormat == logadapters.FormatConsole {
		return logadapters.NewZerologLogger(os.Stderr, cfg.LogLevel, logadapters.FormatConsole)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL=%q", config.ErrInvalidSetting, cfg.LogLevel)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	return oteladapters.NewSlogBridgeLoggerWithHandler(handler), nil
}

// openRuntime loads the configuration and connects to the database. withNotifier also
// connects to the broker when one is configured.
func openRuntime(ctx context.Context, envFile string, withNotifier bool) (*runtime, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger}

	if rt.providers, err = config.NewObservabilityProviders(ctx, cfg, version); err != nil {
		return nil, err
	}

	rt.closers = append(rt.closers, rt.providers.Shutdown)

	store, closeDB, err := config.OpenPostgresStore(ctx, cfg, rt.storeOptions()...)
	if err != nil {
		return nil, errors.Join(err, rt.close())
	}

	rt.store = store
	rt.closers = append(rt.closers, func() error { closeDB(); return nil })

	logger.Info(logMsgStoreOpened,
		logAttrAdapter, cfg.AdapterType,
		logAttrSchema, store.Schema(),
		logAttrTracing, rt.providers.TracingEnabled(),
		logAttrMetrics, rt.providers.MetricsEnabled(),
	)

	if withNotifier {
		if err = rt.openNotifier(); err != nil {
			return nil, errors.Join(err, rt.close())
		}
	}

	return rt, nil
}

func (rt *runtime) storeOptions() []postgresengine.Option {
	options := []postgresengine.Option{
		postgresengine.WithLogger(rt.logger),
		postgresengine.WithContextualLogger(rt.logger),
	}

	if rt.providers.MetricsEnabled() {
		meter := rt.providers.MeterProvider.Meter(serviceName)
		options = append(options, postgresengine.WithMetrics(oteladapters.NewMetricsCollector(meter)))
	}

	if rt.providers.TracingEnabled() {
		tracer := rt.providers.TracerProvider.Tracer(serviceName)
		options = append(options, postgresengine.WithTracing(oteladapters.NewTracingCollector(tracer)))
	}

	return options
}

func (rt *runtime) openNotifier() error {
	if rt.cfg.RabbitURL == "" {
		rt.logger.Warn(logMsgNotifierLogging)
		rt.notifier = notification.NewLogNotifier(rt.logger)

		return nil
	}

	conn, err := notification.Dial(rt.cfg.RabbitURL, rt.cfg.RabbitExchange)
	if err != nil {
		return fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	rt.closers = append(rt.closers, conn.Close)

	notifier, err := notification.NewAMQPNotifier(conn.Channel, rt.cfg.RabbitExchange, notification.WithLogger(rt.logger))
	if err != nil {
		return err
	}

	rt.logger.Info(logMsgNotifierRabbit, logAttrExchange, rt.cfg.RabbitExchange)
	rt.notifier = notifier

	return nil
}

func (rt *runtime) observableOptions() []observable.Option {
	options := []observable.Option{observable.WithContextualLogging(rt.logger)}

	if rt.providers.MetricsEnabled() {
		options = append(options, observable.WithMetrics(oteladapters.NewMetricsCollector(rt.providers.MeterProvider.Meter(serviceName))))
	}

	if rt.providers.TracingEnabled() {
		options = append(options, observable.WithTracing(oteladapters.NewTracingCollector(rt.providers.TracerProvider.Tracer(serviceName))))
	}

	return options
}

func (rt *runtime) handlerOptions() httpapi.HandlerOptions {
	loanOptions := []loanledger.Option{
		loanledger.WithPolicy(rt.cfg.Policy),
		loanledger.WithLogger(rt.logger),
	}

	if rt.notifier != nil {
		loanOptions = append(loanOptions, loanledger.WithNotifier(rt.notifier))
	}

	return httpapi.HandlerOptions{
		Loans: loanOptions,
		Fines: []fineledger.Option{
			fineledger.WithPolicy(fineledger.Policy{RatePerDay: rt.cfg.Policy.FineRatePerDay}),
			fineledger.WithLogger(rt.logger),
		},
		Copies: []copyregistry.Option{},
	}
}

// handlers builds the instrumented handlers the API dispatches to.
func (rt *runtime) handlers() (httpapi.Handlers, error) {
	core := httpapi.NewCoreHandlers(rt.store, rt.handlerOptions())
	in := &instrumenter{options: rt.observableOptions()}

	instrumented := httpapi.Handlers{
		Borrow:            command(in, core.Borrow),
		Return:            command(in, core.Return),
		ListLoans:         query(in, core.ListLoans),
		PlaceReservation:  command(in, core.PlaceReservation),
		CancelReservation: command(in, core.CancelReservation),
		QueuePosition:     query(in, core.QueuePosition),
		ListCopies:        query(in, core.ListCopies),
		AddCopy:           command(in, core.AddCopy),
		RemoveCopy:        command(in, core.RemoveCopy),
		PayFine:           command(in, core.PayFine),
		RecomputeFine:     command(in, core.RecomputeFine),
		ListFines:         query(in, core.ListFines),
	}

	return instrumented, in.err
}

// sweepers builds the instrumented sweep handlers.
func (rt *runtime) sweepers() (shell.CoreCommandHandler[fineledger.CalculateOverdueFinesCommand, fineledger.OverdueSummary],
	shell.CoreCommandHandler[loanledger.ExpireReadyReservationsCommand, loanledger.HoldSweepSummary], error,
) {
	options := rt.handlerOptions()
	in := &instrumenter{options: rt.observableOptions()}

	fines := command(in, shell.CoreCommandHandler[fineledger.CalculateOverdueFinesCommand, fineledger.OverdueSummary](
		fineledger.NewCalculateOverdueFinesHandler(rt.store, options.Fines...),
	))
	holds := command(in, shell.CoreCommandHandler[loanledger.ExpireReadyReservationsCommand, loanledger.HoldSweepSummary](
		loanledger.NewExpireReadyReservationsHandler(rt.store, options.Loans...),
	))

	return fines, holds, in.err
}

func (rt *runtime) close() error {
	var errs []error

	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}

	rt.closers = nil

	return errors.Join(errs...)
}

// instrumenter wraps handlers with observable wrappers and keeps the first error.
type instrumenter struct {
	options []observable.Option
	err     error
}

func command[C shell.Command, R any](in *instrumenter, handler shell.CoreCommandHandler[C, R]) shell.CoreCommandHandler[C, R] {
	wrapped, err := observable.NewCommandWrapper[C, R](handler, in.options...)
	if err != nil {
		in.err = errors.Join(in.err, err)
		return handler
	}

	return wrapped
}

func query[Q shell.Query, R any](in *instrumenter, handler shell.CoreQueryHandler[Q, R]) shell.CoreQueryHandler[Q, R] {
	wrapped, err := observable.NewQueryWrapper[Q, R](handler, in.options...)
	if err != nil {
		in.err = errors.Join(in.err, err)
		return handler
	}

	return wrapped
}
