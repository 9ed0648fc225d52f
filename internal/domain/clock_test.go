package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/technotrac/authcore/internal/domain"
	"github.com/technotrac/authcore/internal/domain/domaintest"
)

func TestRealClock(t *testing.T) {
	clock := domain.RealClock{}
	before := time.Now()
	got := clock.Now()
	after := time.Now()

	assert.False(t, got.Before(before), "clock.Now() should not be before reference time")
	assert.False(t, got.After(after), "clock.Now() should not be after reference time")
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns fixed time", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		assert.True(t, clock.Now().Equal(fixedTime))
	})

	t.Run("advance moves time forward", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		clock.Advance(5 * time.Minute)
		assert.True(t, clock.Now().Equal(fixedTime.Add(5*time.Minute)))
	})

	t.Run("set changes time", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
		clock.Set(newTime)
		assert.True(t, clock.Now().Equal(newTime))
	})
	t.Run("advance runs hooks with the step in order", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		var steps []string
		clock.OnAdvance(func(d time.Duration) { steps = append(steps, "a:"+d.String()) })
		clock.OnAdvance(func(d time.Duration) {
			steps = append(steps, "b:"+d.String())
			assert.True(t, clock.Now().Equal(fixedTime.Add(d)), "hooks see the advanced time")
		})

		clock.Advance(90 * time.Second)

		assert.Equal(t, []string{"a:1m30s", "b:1m30s"}, steps)
	})

	t.Run("set does not run hooks", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		called := false
		clock.OnAdvance(func(time.Duration) { called = true })

		clock.Set(fixedTime.Add(time.Hour))

		assert.False(t, called)
	})

	t.Run("advance refuses to go backwards", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		assert.Panics(t, func() { clock.Advance(-time.Second) })
	})
}
