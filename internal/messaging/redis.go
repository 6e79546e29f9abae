package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
)

const redisKeyPrefix = "jamfops:queue:"

// ListAPI is the subset of the go-redis client used by RedisClient.
type ListAPI interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	RPopLPush(ctx context.Context, source, destination string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	Close() error
}

// RedisClient implements Client on Redis lists, for local runs. Received
// messages are parked on a processing list until they are settled.
type RedisClient struct {
	client ListAPI
	log    logrus.FieldLogger
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(host string, port int, password string, db int, log logrus.FieldLogger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, failure.Wrap(failure.ErrTransport, "connect to redis", err)
	}

	return NewRedisClientWithAPI(client, log), nil
}

// NewRedisClientWithAPI creates a client over any ListAPI implementation
func NewRedisClientWithAPI(client ListAPI, log logrus.FieldLogger) *RedisClient {
	return &RedisClient{client: client, log: log}
}

func queueKey(queue string) string      { return redisKeyPrefix + queue }
func processingKey(queue string) string { return redisKeyPrefix + queue + ":processing" }

// SendMessage pushes body onto the queue list
func (r *RedisClient) SendMessage(ctx context.Context, queue string, body string) error {
	if err := r.client.LPush(ctx, queueKey(queue), body).Err(); err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("push message to %s", queue), err)
	}
	return nil
}

// ReceiveMessages moves up to max messages to the processing list
func (r *RedisClient) ReceiveMessages(ctx context.Context, queue string, max int) ([]Delivery, error) {
	var deliveries []Delivery
	for len(deliveries) < max {
		body, err := r.client.RPopLPush(ctx, queueKey(queue), processingKey(queue)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			if len(deliveries) > 0 {
				r.log.WithError(err).WithField("queue", queue).Warn("Stopped receiving early")
				break
			}
			return nil, failure.Wrap(failure.ErrTransport, fmt.Sprintf("receive from %s", queue), err)
		}
		deliveries = append(deliveries, &redisDelivery{
			client: r.client,
			queue:  queue,
			id:     uuid.NewString(),
			body:   body,
		})
	}
	return deliveries, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close(ctx context.Context) error {
	return r.client.Close()
}

type redisDelivery struct {
	client ListAPI
	queue  string
	id     string
	body   string
}

func (d *redisDelivery) ID() string   { return d.id }
func (d *redisDelivery) Body() string { return d.body }

// Complete drops the message from the processing list
func (d *redisDelivery) Complete(ctx context.Context) error {
	if err := d.client.LRem(ctx, processingKey(d.queue), 1, d.body).Err(); err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("complete message %s", d.id), err)
	}
	return nil
}

// Abandon puts the message back at the consuming end of the queue
func (d *redisDelivery) Abandon(ctx context.Context) error {
	if err := d.client.RPush(ctx, queueKey(d.queue), d.body).Err(); err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("requeue message %s", d.id), err)
	}
	if err := d.client.LRem(ctx, processingKey(d.queue), 1, d.body).Err(); err != nil {
		return failure.Wrap(failure.ErrTransport, fmt.Sprintf("release message %s", d.id), err)
	}
	return nil
}
