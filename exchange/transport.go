package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/denMaier/solids4foam-sub001/utils"
)

// ErrAborted is returned by transport calls pending when the run is cancelled.
var ErrAborted = errors.New("exchange aborted")

// Transport is one partition's end of the message layer. Send blocks until
// the peer's matching Receive has taken the data. The tag of a Receive must
// match the tag of the Send it pairs with.
type Transport interface {
	Send(to, tag int, data []float64) error
	Receive(from, tag int, data []float64) error
}

type message struct {
	tag  int
	data []float64
}

// MemoryTransport connects partitions running as goroutines of one process.
type MemoryTransport struct {
	ctx context.Context
	mb  *utils.MailBox[message]
}

func NewMemoryTransport(ctx context.Context, nParts int) *MemoryTransport {
	return &MemoryTransport{ctx: ctx, mb: utils.NewMailBox[message](nParts)}
}

// Endpoint returns the Transport used by partition part.
func (mt *MemoryTransport) Endpoint(part int) Transport {
	return &endpoint{mt: mt, part: part}
}

type endpoint struct {
	mt   *MemoryTransport
	part int
}

func (ep *endpoint) Send(to, tag int, data []float64) (err error) {
	msg := message{tag: tag, data: append([]float64(nil), data...)}
	if err = ep.mt.mb.PostMessage(ep.mt.ctx, ep.part, to, msg); err != nil {
		err = fmt.Errorf("send %d->%d tag %d: %w (%v)", ep.part, to, tag, ErrAborted, err)
	}
	return
}

func (ep *endpoint) Receive(from, tag int, data []float64) (err error) {
	var msg message
	if msg, err = ep.mt.mb.ReceiveMessage(ep.mt.ctx, ep.part, from); err != nil {
		return fmt.Errorf("receive %d<-%d tag %d: %w (%v)", ep.part, from, tag, ErrAborted, err)
	}
	if msg.tag != tag {
		return fmt.Errorf("receive %d<-%d: tag %d, want %d", ep.part, from, msg.tag, tag)
	}
	if len(msg.data) != len(data) {
		return fmt.Errorf("receive %d<-%d tag %d: %d values, want %d",
			ep.part, from, tag, len(msg.data), len(data))
	}
	copy(data, msg.data)
	return
}

// Run starts fn for every partition on its own goroutine, all connected by
// one MemoryTransport. The first failing partition cancels the transport so
// that its peers stop waiting on it; Run returns that first error.
func Run(ctx context.Context, nParts int, fn func(part int, tr Transport) error) (err error) {
	var (
		wg          sync.WaitGroup
		once        sync.Once
		cctx, abort = context.WithCancel(ctx)
		mt          = NewMemoryTransport(cctx, nParts)
	)
	defer abort()
	for part := 0; part < nParts; part++ {
		wg.Add(1)
		go func(part int) {
			defer wg.Done()
			if pErr := fn(part, mt.Endpoint(part)); pErr != nil {
				once.Do(func() {
					err = fmt.Errorf("partition %d: %w", part, pErr)
					abort()
				})
			}
		}(part)
	}
	wg.Wait()
	return
}
