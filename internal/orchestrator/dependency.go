package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docker/docker/client"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"vncorchestrator/internal/config"
)

// dependencies holds the handful of long-lived infrastructure clients the
// Orchestrator owns: the Docker daemon connection, the Redis client backing
// both asynq and the event bus, and the asynq client used to enqueue
// replenish tasks.
type dependencies struct {
	Docker      *client.Client
	Redis       *redis.Client
	AsynqClient *asynq.Client
	AsynqRedis  asynq.RedisClientOpt
}

func initDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := dockerClient.Ping(ctx); err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("docker ping: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("redis ping (%s): %w", cfg.Redis.Addr, err)
	}

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	}
	asynqClient := asynq.NewClient(asynqRedisOpt)

	return &dependencies{
		Docker:      dockerClient,
		Redis:       redisClient,
		AsynqClient: asynqClient,
		AsynqRedis:  asynqRedisOpt,
	}, nil
}

func (d *dependencies) Close() {
	if d.AsynqClient != nil {
		d.AsynqClient.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.Docker != nil {
		d.Docker.Close()
	}
}
