package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vinayprograms/solanirad/transport"
)

// watch prints each event from a running service, one JSON line per event.
func watch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 0, "stop after this long (0 = until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	url := "http://127.0.0.1:8080/api/v1/events"
	if fs.NArg() > 0 {
		url = fs.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	client := transport.NewSSEClient(url)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-client.Recv():
			if !ok {
				return fmt.Errorf("stream closed")
			}
			fmt.Printf("%s\t%d\t%s\t%s\n", time.Now().Format(time.RFC3339), msg.Seq, msg.Event, msg.Data)
		}
	}
}
