package events

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Bus is a publisher/subscriber pair bound to one topic.
type Bus struct {
	Topic      string
	Publisher  message.Publisher
	Subscriber message.Subscriber

	redis *redis.Client
}

// BuildBus constructs a Redis Streams backed bus when settings.Redis.Enabled is
// set, and an in-memory GoChannel bus otherwise.
func BuildBus(ctx context.Context, s Settings, logger watermill.LoggerAdapter) (*Bus, error) {
	topic := s.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	if !s.Redis.Enabled {
		pubsub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logger)
		return &Bus{Topic: topic, Publisher: pubsub, Subscriber: pubsub}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.Redis.Addr})
	if err := EnsureGroupAtTail(ctx, client, topic, s.Redis.Group); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ensure redis consumer group")
	}

	marshaler := rstream.DefaultMarshallerUnmarshaller{}
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Redis.Group,
		Consumer:      s.Redis.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "redis subscriber")
	}

	return &Bus{Topic: topic, Publisher: pub, Subscriber: sub, redis: client}, nil
}

// Close shuts down the publisher, the subscriber and the Redis client if any.
func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if b.Publisher != nil {
		keep(b.Publisher.Close())
	}
	if b.Subscriber != nil && any(b.Subscriber) != any(b.Publisher) {
		keep(b.Subscriber.Close())
	}
	if b.redis != nil {
		keep(b.redis.Close())
	}
	return first
}

// EnsureGroupAtTail creates the consumer group for a stream at the tail ($) if it
// doesn't exist, so a fresh tap does not replay the whole history.
func EnsureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return err
	}
	log.Info().Str("component", "events").Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}
