package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/yonigrin7234/moveboss-pro-sub002/internal/infrastructure/changefeed/port"
)

// DefaultChannel is the NOTIFY channel written by the messaging triggers.
const DefaultChannel = "messaging_changes"

// PgListener bridges Postgres LISTEN/NOTIFY into a Publisher. The triggers
// installed by the messaging migration emit one JSON notification per row change.
type PgListener struct {
	pool    *pgxpool.Pool
	channel string
	out     port.Publisher
	log     zerolog.Logger

	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewPgListener(pool *pgxpool.Pool, out port.Publisher, log zerolog.Logger) *PgListener {
	return &PgListener{
		pool:        pool,
		channel:     DefaultChannel,
		out:         out,
		log:         log,
		backoffBase: time.Second,
		backoffCap:  30 * time.Second,
	}
}

// Run listens until ctx is canceled, reconnecting with exponential backoff.
func (l *PgListener) Run(ctx context.Context) error {
	backoff := l.backoffBase
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.log.Error().Err(err).Dur("retry_in", backoff).Msg("changefeed: listener stopped, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff*2 < l.backoffCap {
			backoff *= 2
		} else {
			backoff = l.backoffCap
		}
	}
}

func (l *PgListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("changefeed: acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+l.channel); err != nil {
		return fmt.Errorf("changefeed: listen: %w", err)
	}
	l.log.Info().Str("channel", l.channel).Msg("changefeed: listening")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("changefeed: wait: %w", err)
		}
		ev, err := DecodeNotification([]byte(n.Payload))
		if err != nil {
			l.log.Warn().Err(err).Str("payload", n.Payload).Msg("changefeed: malformed notification")
			continue
		}
		if err := l.out.Publish(ctx, ev); err != nil {
			return err
		}
	}
}

// DecodeNotification parses a trigger payload of the form
// {"table": "...", "op": "INSERT", "row": {"id": "...", ...}}.
func DecodeNotification(payload []byte) (port.Event, error) {
	var ev port.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return port.Event{}, err
	}
	if ev.Table == "" || ev.Op == "" {
		return port.Event{}, fmt.Errorf("changefeed: notification missing table or op")
	}
	if ev.Row == nil {
		ev.Row = map[string]string{}
	}
	if ev.Committed.IsZero() {
		ev.Committed = time.Now().UTC()
	}
	return ev, nil
}
