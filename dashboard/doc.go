// Package dashboard owns the live state behind the telemetry dashboard.
//
// A single Engine goroutine consumes three kinds of event from one loop:
// feed messages, feed errors and refresh ticks. Each is applied to a Model,
// which holds the system state, the derived reading and its history, the
// heartbeat map, the connected flag and the current time. After every event
// the Model is rendered into an immutable View that HTTP handlers and live
// stream clients read.
//
// # Events
//
//   - FeedMessage overwrites the system state, refreshes the heartbeats of
//     the sensors present in the payload and appends a Reading to History.
//     Empty payloads are logged and ignored.
//   - FeedError clears the connected flag. History and heartbeats are kept,
//     so stale values degrade to Disconnected rather than vanish.
//   - Tick only advances the clock. Liveness is re-derived from it.
//
// # Commands
//
// Reboot writes true to the control key when the controller is online.
// It is not retried; the outcome becomes a one-shot Notification in the
// next View.
//
// # Usage
//
//	sub := feed.NewStoreSubscriber(store, cfg.FeedKey)
//	eng := dashboard.New(cfg, sub, store,
//	    dashboard.WithLogger(logger),
//	    dashboard.WithMetrics(m),
//	    dashboard.WithPublisher(hub),
//	)
//	go eng.Run(ctx)
//
//	view := eng.View()
package dashboard
