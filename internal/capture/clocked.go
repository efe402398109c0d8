// SPDX-License-Identifier: MIT
package capture

import (
	"sync"
	"time"

	applog "micscope/internal/log"

	"github.com/go-audio/audio"
)

// clocked emits one produced frame per frame interval from a ticker
// goroutine. It backs the sources that have no hardware clock.
type clocked struct {
	name    string
	cfg     Config
	hub     *hub
	produce func() *audio.IntBuffer // Called only from the ticker goroutine.

	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.
	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
}

func newClocked(name string, cfg Config, produce func() *audio.IntBuffer) *clocked {
	return &clocked{name: name, cfg: cfg, hub: newHub(), produce: produce}
}

// Start launches the ticker goroutine. Subsequent calls are no-ops
// while running.
func (c *clocked) Start() error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker != nil {
		applog.Warnf("%s: Start called but already running.", c.name)
		return nil
	}

	interval := c.cfg.FrameInterval()
	c.hub.start()
	c.ticker = time.NewTicker(interval)
	c.doneChan = make(chan struct{})

	ticker, doneChan, queue := c.ticker, c.doneChan, c.hub.queue

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		applog.Infof("%s: started (%s, every %s)", c.name, c.cfg, interval)
		for {
			select {
			case <-ticker.C:
				if frame := c.produce(); frame != nil {
					c.hub.offer(queue, frame)
				}
			case <-doneChan:
				return
			}
		}
	}()
	return nil
}

// Stop halts the ticker goroutine and the dispatcher. It is safe to
// call repeatedly and before Start.
func (c *clocked) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticker == nil {
		return nil
	}

	c.ticker.Stop()
	close(c.doneChan)
	c.wg.Wait()
	c.hub.stop()
	c.ticker = nil
	applog.Infof("%s: stopped (%d frames dropped)", c.name, c.hub.Dropped())
	return nil
}

// AddListener registers fn for every emitted frame.
func (c *clocked) AddListener(fn func(*audio.IntBuffer)) *Listener {
	return c.hub.add(fn)
}

// Dropped returns the number of frames discarded because listeners
// could not keep up.
func (c *clocked) Dropped() uint64 {
	return c.hub.Dropped()
}
