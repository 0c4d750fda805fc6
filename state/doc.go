// Package state provides the key-value store the dashboard reads telemetry
// from and writes control flags to.
//
// The StateStore interface covers plain key-value operations with optional
// TTL and change notification, with two backends: NATS JetStream KV for
// deployments and an in-memory store for tests and the standalone demo.
//
// # Usage
//
//	conn, _ := nats.Connect("nats://localhost:4222")
//	store, _ := state.NewNATSStore(state.NATSStoreConfig{
//	    Conn:   conn,
//	    Bucket: "solanirad",
//	})
//
//	// or, for tests and the simulator:
//	store := state.NewMemoryStore()
//
//	store.Put(ctx, "iot_system.control.reboot", []byte("true"), 0)
//
//	// Watch delivers changes made after the call; read the current value
//	// with Get first if it matters.
//	ch, _ := store.Watch(ctx, "iot_system")
//	for kv := range ch {
//	    fmt.Printf("%s changed: %s\n", kv.Key, kv.Value)
//	}
package state
