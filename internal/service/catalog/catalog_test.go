package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/store"
)

type fakeServices struct {
	calls  int
	findFn func(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)
}

func (f *fakeServices) FindService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
	f.calls++
	return f.findFn(ctx, serviceID)
}

func TestDuration_Errors(t *testing.T) {
	tests := []struct {
		name string
		svc  domain.Service
		err  error
		want error
	}{
		{name: "unknown", err: store.ErrNotFound, want: domain.ErrServiceNotFound},
		{name: "inactive", svc: domain.Service{DurationMinutes: 30}, want: domain.ErrServiceNotFound},
		{name: "zero minutes", svc: domain.Service{DurationMinutes: 0, IsActive: true}, want: domain.ErrInvalidDuration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(&fakeServices{findFn: func(ctx context.Context, id uuid.UUID) (domain.Service, error) {
				return tc.svc, tc.err
			}}, nil)
			_, err := c.Duration(context.Background(), uuid.New())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDuration_ReadThroughCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	id := uuid.New()
	services := &fakeServices{findFn: func(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
		return domain.Service{ID: serviceID, Name: "Full groom", DurationMinutes: 90, IsActive: true}, nil
	}}
	c := New(services, nil)
	c.UseRedisCache(client, time.Minute)

	for i := 0; i < 3; i++ {
		minutes, err := c.Duration(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 90, minutes)
	}
	assert.Equal(t, 1, services.calls)

	cached, err := mr.Get(keyPrefix + id.String())
	require.NoError(t, err)
	assert.Equal(t, "90", cached)

	mr.FastForward(2 * time.Minute)
	_, err = c.Duration(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, services.calls)

	require.NoError(t, c.Invalidate(context.Background(), id))
	assert.False(t, mr.Exists(keyPrefix+id.String()))
}

func TestDuration_CacheDownFallsBackToStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	services := &fakeServices{findFn: func(ctx context.Context, serviceID uuid.UUID) (domain.Service, error) {
		return domain.Service{DurationMinutes: 30, IsActive: true}, nil
	}}
	c := New(services, nil)
	c.UseRedisCache(client, time.Minute)

	minutes, err := c.Duration(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 30, minutes)
}
