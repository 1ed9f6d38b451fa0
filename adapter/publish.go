package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sergev/antspeed/monitoring"
	"github.com/sergev/antspeed/publish"
	"github.com/sergev/antspeed/speed"
	"github.com/spf13/cobra"
)

var (
	flagListen       string
	flagRedis        string
	flagRedisChannel string
)

// addPublishFlags adds the live output options shared by bind and scan.
func addPublishFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagListen, "listen", "", "serve samples over WebSocket at ws://ADDR/ws")
	cmd.Flags().StringVar(&flagRedis, "redis", "", "publish samples to the Redis server at ADDR")
	cmd.Flags().StringVar(&flagRedisChannel, "redis-channel", publish.DefaultChannel, "Redis pub/sub channel")
}

type subscriber interface {
	Subscribe(fn speed.Sink) string
}

// startPublishers subscribes the requested live outputs to hub.
// The returned function stops them.
func startPublishers(ctx context.Context, hub subscriber, listen, redisAddr, channel string) (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if listen != "" {
		ln, err := net.Listen("tcp", listen)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", listen, err)
		}
		ws := publish.NewWebSocket()
		mux := http.NewServeMux()
		mux.Handle("/ws", ws)
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				monitoring.Logf("websocket server: %v", err)
			}
		}()
		hub.Subscribe(ws.Add)
		fmt.Printf("Streaming samples at ws://%s/ws\n", ln.Addr())

		stops = append(stops, func() {
			ws.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		})
	}

	if redisAddr != "" {
		r := publish.NewRedis(ctx, redisAddr, channel)
		hub.Subscribe(r.Add)
		fmt.Printf("Publishing samples to Redis %s channel %s\n", redisAddr, r.Channel())

		stops = append(stops, func() {
			if err := r.Close(); err != nil {
				monitoring.Logf("redis: %v", err)
			}
			if n := r.Dropped(); n > 0 {
				monitoring.Logf("redis: %d samples dropped", n)
			}
		})
	}
	return stop, nil
}
