// Package shutdown stops the service's components in phases.
//
// Handlers are grouped by Phase. Phases run in ascending order; handlers
// within one phase run concurrently. The standard order is:
//
//	PhaseIngress  HTTP server and live streams stop accepting clients
//	PhaseEngine   dashboard engine and simulator stop producing
//	PhaseStorage  state store, NATS connection, tracing and event journal
//
// # Usage
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig(), shutdown.WithLogger(logger))
//	coord.RegisterFunc("http", shutdown.PhaseIngress, srv.Shutdown)
//	coord.RegisterFunc("store", shutdown.PhaseStorage, func(ctx context.Context) error {
//	    return store.Close()
//	})
//	coord.HandleSignals(cancel)
//
//	<-coord.Done()
//
// Shutdown runs at most once. A context that expires between phases stops
// the sequence with ErrTimeout; the phases already started still finish.
package shutdown
