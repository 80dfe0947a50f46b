package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"

	"github.com/nhle/contacts/internal/cache"
	"github.com/nhle/contacts/internal/soap"
)

type call struct {
	op  string
	req interface{}
}

// fakeInvoker answers operations from queued responses. The last queued
// response of an op is reused once the queue is down to one.
type fakeInvoker struct {
	mu        gosync.Mutex
	calls     []call
	responses map[string][]interface{}
	errs      map[string]error
	handler   soap.NotifyHandler

	// onNoOp, when set, replaces the NoOp behavior.
	onNoOp func(ctx context.Context, f *fakeInvoker) error
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		responses: make(map[string][]interface{}),
		errs:      make(map[string]error),
	}
}

func (f *fakeInvoker) respond(op string, resp ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[op] = append(f.responses[op], resp...)
}

func (f *fakeInvoker) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeInvoker) OnNotify(h soap.NotifyHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeInvoker) notify(session string, blocks ...soap.Notification) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(session, blocks)
	}
}

func (f *fakeInvoker) Invoke(ctx context.Context, op string, req, resp interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{op: op, req: req})
	onNoOp := f.onNoOp
	err := f.errs[op]
	var next interface{}
	if queue := f.responses[op]; len(queue) > 0 {
		next = queue[0]
		if len(queue) > 1 {
			f.responses[op] = queue[1:]
		}
	}
	f.mu.Unlock()

	if op == "NoOp" && onNoOp != nil {
		return onNoOp(ctx, f)
	}
	if err != nil {
		return err
	}
	if next == nil || resp == nil {
		return nil
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshaling fake %s response: %w", op, err)
	}
	return json.Unmarshal(data, resp)
}

func (f *fakeInvoker) callsTo(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

type fakePersister struct {
	mu    gosync.Mutex
	saved []cache.State
}

func (p *fakePersister) SaveState(_ context.Context, s cache.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, s)
	return nil
}

func (p *fakePersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saved)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}
