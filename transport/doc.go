// Package transport pushes dashboard events to browsers.
//
// # Overview
//
// A Hub fans each published event out to every connected client. Clients
// attach over one of two transports:
//
//   - Server-Sent Events: one-way stream, works through most proxies
//   - WebSocket: full duplex; incoming frames are read only to detect close
//
// Each event is marshalled once into a Message and queued on every
// client's buffer. A client whose buffer is full misses that event rather
// than stalling the others. A newly attached client first receives the
// last message of each replayed event, so it renders without waiting for
// the next tick.
//
// # Usage
//
//	hub := transport.NewHub(transport.DefaultConfig(),
//	    transport.WithLogger(logger),
//	    transport.WithMetrics(m),
//	)
//	defer hub.Close()
//
//	mux.HandleFunc("/events", hub.HandleSSE)
//	mux.HandleFunc("/ws", hub.HandleWebSocket)
//
//	hub.Publish("view", view)
//
// # Thread Safety
//
// All Hub methods are safe for concurrent use.
package transport
