package app

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"carpool/internal/config"
)

func TestDriverName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "postgres", driverName(config.DatabaseConfig{Driver: "postgres"}, nil))
	assert.Equal(t, "pgx", driverName(config.DatabaseConfig{Driver: "pgx"}, nil))
	assert.Equal(t, "postgres", driverName(config.DatabaseConfig{}, nil))
}

func TestKeyspace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  redis.Cmder
		want string
	}{
		{name: "set nx", cmd: redis.NewBoolCmd(ctx, "set", "lock:ride:r1", "token", "nx"), want: "lock"},
		{name: "get", cmd: redis.NewStringCmd(ctx, "get", "cache:ride:r1"), want: "cache"},
		{name: "evalsha", cmd: redis.NewCmd(ctx, "evalsha", "abc123", 1, "lock:ride:r1", "token"), want: "lock"},
		{name: "ping", cmd: redis.NewStatusCmd(ctx, "ping"), want: "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyspace(tt.cmd))
		})
	}
}
