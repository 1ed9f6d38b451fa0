package publish

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sergev/antspeed/monitoring"
	"github.com/sergev/antspeed/speed"
)

// DefaultChannel is the Redis pub/sub channel samples are published on.
const DefaultChannel = "antspeed:samples"

const (
	redisQueue   = 256
	redisTimeout = time.Second
)

// Redis publishes samples on a Redis pub/sub channel from a background
// worker so the decoder never waits on the network.
type Redis struct {
	client  *redis.Client
	channel string
	queue   chan []byte
	done    chan struct{}

	mu      sync.Mutex
	dropped int
	closed  bool
}

// NewRedis connects to the server at addr. An unreachable server is logged,
// not fatal: publishing retries per sample.
func NewRedis(ctx context.Context, addr, channel string) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := client.Ping(pingCtx).Err(); err != nil {
		monitoring.Logf("redis: %s not available (%v), samples will be dropped until it is", addr, err)
	} else {
		monitoring.Debugf("redis: connected to %s, publishing on %s", addr, channel)
	}
	cancel()

	r := &Redis{
		client:  client,
		channel: channel,
		queue:   make(chan []byte, redisQueue),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Channel returns the pub/sub channel name.
func (r *Redis) Channel() string { return r.channel }

// Add queues a sample for publishing. A full queue drops the sample.
func (r *Redis) Add(s speed.Sample) {
	data, err := encode(s)
	if err != nil {
		monitoring.Logf("redis: %v", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- data:
	default:
		r.dropped++
	}
}

// Dropped returns the number of samples discarded on a full queue.
func (r *Redis) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Redis) run() {
	defer close(r.done)
	for data := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		err := r.client.Publish(ctx, r.channel, data).Err()
		cancel()
		if err != nil {
			monitoring.Debugf("redis: publish: %v", err)
		}
	}
}

// Close flushes queued samples and closes the connection.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.client.Close()
}
