package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChainManagerPreservesPerKeyOrder(t *testing.T) {
	cm := newChainManager()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		task := &Task{ID: "irrelevant", Attempt: i}
		cm.submit("incident-1", task, func(tk *Task) {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, tk.Attempt)
			mu.Unlock()
		})
	}

	wg.Wait()

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, order)
}

func TestChainManagerRunsDistinctKeysInParallel(t *testing.T) {
	cm := newChainManager()
	var wg sync.WaitGroup
	release := make(chan struct{})

	wg.Add(1)
	cm.submit("a", &Task{}, func(tk *Task) {
		defer wg.Done()
		<-release
	})

	done := make(chan struct{})
	wg.Add(1)
	cm.submit("b", &Task{}, func(tk *Task) {
		defer wg.Done()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key b was blocked by key a's in-flight task")
	}

	close(release)
	wg.Wait()
}
