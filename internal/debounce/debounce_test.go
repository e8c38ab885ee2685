package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallCoalesces(t *testing.T) {
	g := New(30 * time.Millisecond)
	defer g.Close()

	var calls, last atomic.Int32
	for i := 1; i <= 5; i++ {
		v := int32(i)
		g.Call("name", func() {
			calls.Add(1)
			last.Store(v)
		})
	}
	assert.True(t, g.Pending("name"))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(5), last.Load())
	assert.False(t, g.Pending("name"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallKeysAreIndependent(t *testing.T) {
	g := New(20 * time.Millisecond)
	defer g.Close()

	var calls atomic.Int32
	g.Call("a", func() { calls.Add(1) })
	g.Call("b", func() { calls.Add(1) })

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestCancel(t *testing.T) {
	g := New(20 * time.Millisecond)
	defer g.Close()

	var calls atomic.Int32
	g.Call("a", func() { calls.Add(1) })
	assert.True(t, g.Cancel("a"))
	assert.False(t, g.Cancel("a"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFlush(t *testing.T) {
	g := New(time.Hour)
	defer g.Close()

	var order []string
	g.Call("b", func() { order = append(order, "b") })
	g.Call("a", func() { order = append(order, "a") })
	g.Call("b", func() { order = append(order, "b2") })

	assert.Equal(t, 2, g.Flush())
	assert.Equal(t, []string{"a", "b2"}, order)
	assert.Equal(t, 0, g.Flush())
}

func TestZeroDelayRunsInline(t *testing.T) {
	g := New(0)
	ran := false
	g.Call("a", func() { ran = true })
	assert.True(t, ran)
}

func TestClose(t *testing.T) {
	g := New(10 * time.Millisecond)
	var calls atomic.Int32
	g.Call("a", func() { calls.Add(1) })
	g.Close()
	g.Call("a", func() { calls.Add(1) })

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestCancelAll(t *testing.T) {
	g := New(time.Hour)
	defer g.Close()

	g.Call("a", func() {})
	g.Call("b", func() {})
	g.CancelAll()

	assert.False(t, g.Pending("a"))
	assert.Equal(t, 0, g.Flush())
}
