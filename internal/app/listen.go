package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"lyricsync/internal/config"
	"lyricsync/pkg/redis"

	"github.com/rs/zerolog/log"
)

var errRedisDisabled = errors.New("redis is not enabled in config")

// Listen 订阅其它实例通过 Redis 发布的状态，逐条写出显示文本（raw 时写原始 JSON）
func Listen(ctx context.Context, cfg *config.Config, w io.Writer, raw bool) error {
	if !cfg.Redis.Enabled {
		return errRedisDisabled
	}
	client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
	if err != nil {
		return err
	}
	defer client.Close()

	pubsub := client.Subscribe(ctx)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", client.Channel(), err)
	}
	log.Info().Str("channel", client.Channel()).Msg("Listening for lyrics updates")

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			line, err := formatMessage(msg.Payload, raw)
			if err != nil {
				log.Warn().Err(err).Msg("Skipping malformed message")
				continue
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
}

func formatMessage(payload string, raw bool) (string, error) {
	var state State
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return "", fmt.Errorf("invalid state: %w", err)
	}
	if raw {
		return payload, nil
	}
	return state.Text, nil
}
