package content

import (
	"context"
	"sync"
)

// Binding renders content that keeps changing, such as an editor preview.
// Each Update supersedes the previous one: the older parse is cancelled and,
// if it still completes, its result is dropped.
type Binding struct {
	parser  *Parser
	publish func(generation uint64, res Result)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	latest     Result
	hasLatest  bool
	wg         sync.WaitGroup
}

// NewBinding returns a binding that reports current results to publish.
// publish is called with the binding's lock held and must not call back
// into the binding.
func NewBinding(parser *Parser, publish func(generation uint64, res Result)) *Binding {
	return &Binding{parser: parser, publish: publish}
}

// Update starts rendering raw and returns its generation number.
func (b *Binding) Update(ctx context.Context, raw string) uint64 {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.generation++
	generation := b.generation
	parseCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer cancel()
		res := b.parser.Parse(parseCtx, raw)

		b.mu.Lock()
		defer b.mu.Unlock()
		if generation != b.generation {
			return
		}
		b.latest = res
		b.hasLatest = true
		if b.publish != nil {
			b.publish(generation, res)
		}
	}()
	return generation
}

// Latest returns the result of the newest update that has completed.
func (b *Binding) Latest() (Result, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest, b.hasLatest
}

// Wait blocks until all started parses have finished.
func (b *Binding) Wait() {
	b.wg.Wait()
}

// Close cancels any parse in flight and waits for it to finish. Results
// arriving after Close are dropped.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.generation++
	b.mu.Unlock()
	b.wg.Wait()
}
