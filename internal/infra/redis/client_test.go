package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	c := Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy redis, got %v", err)
	}

	mr.Close()
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected health check failure after shutdown")
	}
}
