package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kirillkom/alpine-guardian/internal/infrastructure/cache"
)

func TestGetReturnsValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "alpine:emb:k")).
		Return(mock.Result(mock.RedisBlobString("value")))

	data, err := NewStoreWithClient(c).Get(context.Background(), "alpine:emb:k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "value" {
		t.Fatalf("unexpected data %q", data)
	}
}

func TestGetMapsNilToKeyNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "missing")).
		Return(mock.Result(mock.RedisNil()))

	_, err := NewStoreWithClient(c).Get(context.Background(), "missing")
	if !errors.Is(err, cache.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGetNetworkErrorIsNotAMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "k")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	_, err := NewStoreWithClient(c).Get(context.Background(), "k")
	if err == nil || errors.Is(err, cache.ErrKeyNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSetWithTTLUsesExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return len(cmd) == 5 && cmd[0] == "SET" && cmd[1] == "k" && cmd[2] == "v" && cmd[3] == "EX"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	if err := NewStoreWithClient(c).SetWithTTL(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
}

func TestSetWithoutTTL(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "k", "v")).
		Return(mock.Result(mock.RedisString("OK")))

	if err := NewStoreWithClient(c).SetWithTTL(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("SetWithTTL() error = %v", err)
	}
}

func TestParseAddrs(t *testing.T) {
	got := ParseAddrs(" redis-1:6379, ,redis-2:6379 ")
	if len(got) != 2 || got[0] != "redis-1:6379" || got[1] != "redis-2:6379" {
		t.Fatalf("unexpected addrs %v", got)
	}
	if ParseAddrs("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

func TestPing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	gomock.InOrder(
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.Result(mock.RedisString("PONG"))),
		c.EXPECT().Do(gomock.Any(), mock.Match("PING")).Return(mock.ErrorResult(errors.New("connection refused"))),
	)

	store := NewStoreWithClient(c)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure")
	}
}
