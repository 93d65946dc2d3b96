package router

import (
	"context"
	"sync"

	"github.com/flemzord/majlis/pkg/message"
)

// DefaultWorkerCount is the number of workers when none is configured.
const DefaultWorkerCount = 4

type envelope struct {
	Message message.InboundMessage
	Key     SessionKey
}

// WorkerPool runs a fixed set of goroutines consuming the inbox until it
// is closed.
type WorkerPool struct {
	size int
	wg   sync.WaitGroup
}

// NewWorkerPool creates a pool. A non-positive size uses DefaultWorkerCount.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = DefaultWorkerCount
	}
	return &WorkerPool{size: size}
}

// Start launches the workers.
func (p *WorkerPool) Start(ctx context.Context, inbox <-chan envelope, handler func(context.Context, envelope)) {
	for range p.size {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for env := range inbox {
				handler(ctx, env)
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
