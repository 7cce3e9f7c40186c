// Package observable wraps circulation command and query handlers with metrics,
// tracing and logging while the handlers themselves stay free of observability code.
//
// Wrapping happens explicitly at wiring time:
//
//	core := loanledger.NewBorrowHandler(store, loanledger.WithNotifier(notifier))
//
//	borrow, err := observable.NewCommandWrapper[loanledger.BorrowCommand, circulation.Loan](
//		core,
//		observable.WithMetrics(metricsCollector),
//		observable.WithTracing(tracingCollector),
//		observable.WithContextualLogging(contextualLogger),
//	)
//
//	loan, result, err := borrow.Handle(ctx, command)
//
// Every concern is optional. A wrapper without options only forwards calls.
// Tests of business behavior use the core handlers directly.
package observable
