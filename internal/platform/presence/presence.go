// Package presence mirrors connection presence into an external store so
// that other instances (or operators) can see who is online. The mirror is
// advisory: the in-process registry remains the source of truth for
// delivery, and mirror failures never affect connection handling.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Info describes one live connection for external observers.
type Info struct {
	InstanceID  string `json:"instanceId"`
	ConnectedAt int64  `json:"connectedAt"`
}

// Mirror records presence transitions.
type Mirror interface {
	Set(ctx context.Context, userID string, info Info) error
	Delete(ctx context.Context, userID string) error
	Close() error
}

// noopMirror is used for single-instance deployments.
type noopMirror struct{}

// NewNoop returns a Mirror that records nothing.
func NewNoop() Mirror { return noopMirror{} }

func (noopMirror) Set(context.Context, string, Info) error { return nil }
func (noopMirror) Delete(context.Context, string) error    { return nil }
func (noopMirror) Close() error                            { return nil }

// redisMirror stores presence entries as JSON values with a TTL, so a crashed
// instance's entries age out instead of lingering.
type redisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis returns a Mirror backed by the given Redis client. Entries live
// under prefix and expire after ttl.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) Mirror {
	return &redisMirror{client: client, prefix: prefix, ttl: ttl}
}

func (m *redisMirror) key(userID string) string {
	return fmt.Sprintf("%s:%s", m.prefix, userID)
}

func (m *redisMirror) Set(ctx context.Context, userID string, info Info) error {
	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal presence info: %w", err)
	}
	if err := m.client.Set(ctx, m.key(userID), payload, m.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence entry: %w", err)
	}
	return nil
}

func (m *redisMirror) Delete(ctx context.Context, userID string) error {
	if err := m.client.Del(ctx, m.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence entry: %w", err)
	}
	return nil
}

func (m *redisMirror) Close() error {
	return m.client.Close()
}
