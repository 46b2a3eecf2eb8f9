package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestCheckBasic(t *testing.T) {
	if got := NewHealthChecker(fakePinger{}, nil, nil).CheckBasic(); got.Status != "healthy" || got.Database.Status != "healthy" {
		t.Errorf("healthy db: %+v", got)
	}
	if got := NewHealthChecker(fakePinger{err: errors.New("down")}, nil, nil).CheckBasic(); got.Status != "unhealthy" {
		t.Errorf("failing db: %+v", got)
	}
}

func TestCheckDetailed(t *testing.T) {
	tests := []struct {
		name       string
		redisUp    func() bool
		wantStatus string
		wantRedis  string
	}{
		{"redis disabled", nil, "healthy", "disabled"},
		{"redis up", func() bool { return true }, "healthy", "healthy"},
		{"redis down", func() bool { return false }, "degraded", "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewHealthChecker(fakePinger{}, tt.redisUp, func() int { return 3 }).CheckDetailed()
			if got.Status != tt.wantStatus || got.Redis != tt.wantRedis || got.RealtimeClients != 3 {
				t.Errorf("status=%s redis=%s clients=%d", got.Status, got.Redis, got.RealtimeClients)
			}
		})
	}
}
