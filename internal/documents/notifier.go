package documents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docchat/internal/redis"
)

type invalidateMessage struct {
	Filename string `json:"filename"`
	Origin   string `json:"origin"`
}

// Notifier fans uploads out to other instances that share the storage
// directory, so their cached text does not go stale.
type Notifier struct {
	client  *redis.Client
	channel string
	origin  string
	store   *Store
	logger  *zap.Logger
}

func NewNotifier(client *redis.Client, channel string, store *Store, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		store:   store,
		logger:  logger,
	}
}

// Attach publishes an invalidation after every Put on the store.
func (n *Notifier) Attach() {
	n.store.AfterPut(func(ctx context.Context, filename string) {
		if err := n.Publish(ctx, filename); err != nil {
			n.logger.Warn("publish document invalidation failed", zap.String("filename", filename), zap.Error(err))
		}
	})
}

// Publish broadcasts that filename changed on disk.
func (n *Notifier) Publish(ctx context.Context, filename string) error {
	payload, err := json.Marshal(invalidateMessage{Filename: filename, Origin: n.origin})
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	return n.client.Publish(ctx, n.channel, payload)
}

// Listen subscribes to the channel and refreshes documents changed by other
// instances until ctx is cancelled.
func (n *Notifier) Listen(ctx context.Context, ready chan<- struct{}) error {
	sub, err := n.client.Subscribe(ctx, n.channel)
	if err != nil {
		return err
	}
	defer sub.Close()
	if ready != nil {
		close(ready)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n.handle(ctx, msg.Payload)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, payload string) {
	var inv invalidateMessage
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		n.logger.Warn("document invalidation decode failed", zap.Error(err))
		return
	}
	if inv.Origin == n.origin {
		return
	}
	if err := n.store.Refresh(ctx, inv.Filename); err != nil {
		n.logger.Warn("refresh from invalidation failed", zap.String("filename", inv.Filename), zap.Error(err))
	}
}
