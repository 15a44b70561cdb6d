package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/queue/port"
)

// ===================== Client =====================

// AsynqClient implements port.Client using github.com/hibiken/asynq
// and Redis as the backing store.
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient constructs a client for the Redis instance at redisURL.
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	opt, err := parseRedis(redisURL)
	if err != nil {
		return nil, err
	}
	c := asynq.NewClient(opt)
	return &AsynqClient{client: c}, nil
}

var _ port.Client = (*AsynqClient)(nil)

func (a *AsynqClient) Enqueue(ctx context.Context, t port.Task, opts ...port.EnqueueOption) (string, error) {
	if t.Type == "" {
		return "", errors.New("asynq: task type is required")
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), asynqOptions(opts)...)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// asynqOptions maps the port options onto asynq's; later options override
// earlier ones field by field.
func asynqOptions(opts []port.EnqueueOption) []asynq.Option {
	var merged port.EnqueueOption
	for _, o := range opts {
		if o.Queue != "" {
			merged.Queue = o.Queue
		}
		if o.MaxRetry > 0 {
			merged.MaxRetry = o.MaxRetry
		}
		if o.UniqueTTL > 0 {
			merged.UniqueTTL = o.UniqueTTL
		}
		if o.Timeout > 0 {
			merged.Timeout = o.Timeout
		}
	}

	var out []asynq.Option
	if merged.Queue != "" {
		out = append(out, asynq.Queue(merged.Queue))
	}
	if merged.MaxRetry > 0 {
		out = append(out, asynq.MaxRetry(merged.MaxRetry))
	}
	if merged.UniqueTTL > 0 {
		out = append(out, asynq.Unique(merged.UniqueTTL))
	}
	if merged.Timeout > 0 {
		out = append(out, asynq.Timeout(merged.Timeout))
	}
	return out
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// ===================== Server =====================

// AsynqServer implements port.Server using github.com/hibiken/asynq
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// ServerOptions configures the worker side.
// Queues is a CSV like "critical=6,default=3,low=1"; empty consumes
// "default" and "messaging" with equal weight.
type ServerOptions struct {
	Concurrency int
	Queues      string
}

// NewAsynqServer constructs a server consuming from the Redis instance at redisURL.
func NewAsynqServer(redisURL string, o ServerOptions, log zerolog.Logger) (*AsynqServer, error) {
	opt, err := parseRedis(redisURL)
	if err != nil {
		return nil, err
	}

	concurrency := 10
	if o.Concurrency > 0 {
		concurrency = o.Concurrency
	}

	queues := map[string]int{"default": 1, "messaging": 1}
	if v := strings.TrimSpace(o.Queues); v != "" {
		parsed := parseQueueWeights(v)
		if len(parsed) > 0 {
			queues = parsed
		}
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("asynq: task failed")
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

func parseRedis(redisURL string) (asynq.RedisConnOpt, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: redis url is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return opt, nil
}

// Ensure interface is satisfied
var _ port.Server = (*AsynqServer)(nil)

func (s *AsynqServer) Register(taskType string, h port.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		pt := port.Task{Type: t.Type(), Payload: t.Payload()}
		return h(ctx, pt)
	})
}

// Run starts the server and blocks until the context is canceled, then gracefully shuts down.
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	// Wait for cancellation
	<-ctx.Done()
	// Graceful shutdown (no context argument supported in current asynq version)
	s.server.Shutdown()
	return nil
}

// Stop gracefully shuts down the server.
func (s *AsynqServer) Stop(ctx context.Context) error {
	_ = ctx // context not used by current Shutdown signature
	s.server.Shutdown()
	return nil
}

// parseQueueWeights parses strings like "critical=6,default=3,low=1" into a map.
func parseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}
