package dircd

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerWheelFiresOneShot(t *testing.T) {
	wheel := NewTimerWheel()
	defer wheel.Stop()

	fired := make(chan struct{})
	wheel.Schedule(10*time.Millisecond, 0, func(time.Time) {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot timer never fired")
	}
}

func TestTimerWheelRepeats(t *testing.T) {
	wheel := NewTimerWheel()
	defer wheel.Stop()

	var count int64
	done := make(chan struct{})
	wheel.Schedule(5*time.Millisecond, 5*time.Millisecond, func(time.Time) {
		if atomic.AddInt64(&count, 1) == 3 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("repeating timer did not fire three times")
	}
}

func TestTimerWheelCancel(t *testing.T) {
	wheel := NewTimerWheel()
	defer wheel.Stop()

	var fired int64
	timer := wheel.Schedule(50*time.Millisecond, 0, func(time.Time) {
		atomic.AddInt64(&fired, 1)
	})
	wheel.Cancel(timer)

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt64(&fired))
}

func TestTimerWheelOrdersByDeadline(t *testing.T) {
	wheel := NewTimerWheel()
	defer wheel.Stop()

	order := make(chan string, 2)
	wheel.Schedule(60*time.Millisecond, 0, func(time.Time) { order <- "late" })
	wheel.Schedule(10*time.Millisecond, 0, func(time.Time) { order <- "early" })

	first := <-order
	second := <-order
	assert.Equal(t, "early", first)
	assert.Equal(t, "late", second)
}
