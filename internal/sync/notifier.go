package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/contacts/internal/normalize"
	"github.com/nhle/contacts/internal/soap"
)

// SyncState represents the current state of the notification channel.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// String implements fmt.Stringer.
func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	}
	return "idle"
}

// SyncStatus holds the state of the notification channel.
type SyncStatus struct {
	State    SyncState
	Session  string
	LastSeq  int
	LastSync time.Time
	Error    error
}

// NotificationMsg is a tea.Msg carrying one notification block.
type NotificationMsg struct {
	Delta normalize.Delta
}

// SessionResetMsg is a tea.Msg sent before the first notification of a new
// server session.
type SessionResetMsg struct {
	Session string
}

// AuthErrorMsg is a tea.Msg sent when the server rejects the auth token.
// The notifier stops polling until restarted.
type AuthErrorMsg struct {
	Message string
}

// Source is the part of the SOAP client the notifier listens to.
type Source interface {
	soap.Invoker
	OnNotify(h soap.NotifyHandler)
}

const (
	// defaultWait is how long the server may hold a NoOp.
	defaultWait = 60 * time.Second
	// retryDelay is the pause after a failed NoOp.
	retryDelay = 5 * time.Second
)

// Notifier turns header notifications into messages. Notifications ride on
// every response; while running, the notifier keeps a waiting NoOp open so
// they arrive even when nothing else is sent.
type Notifier struct {
	api      *soap.API
	opts     normalize.Options
	wait     time.Duration
	retry    time.Duration
	logger   *zap.Logger
	resultCh chan tea.Msg
	stopCh   chan struct{}

	mu      gosync.Mutex
	status  SyncStatus
	session string
	running bool

	qmu     gosync.Mutex
	backlog []tea.Msg
	pumping bool
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithWait sets how long the server may hold each NoOp.
func WithWait(d time.Duration) NotifierOption {
	return func(n *Notifier) {
		if d > 0 {
			n.wait = d
		}
	}
}

// WithRetryDelay sets the pause after a failed NoOp.
func WithRetryDelay(d time.Duration) NotifierOption {
	return func(n *Notifier) { n.retry = d }
}

// WithNotifierLogger sets the notifier logger.
func WithNotifierLogger(l *zap.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = l }
}

// WithNormalizeOptions sets the options used to read notified records.
func WithNormalizeOptions(o normalize.Options) NotifierOption {
	return func(n *Notifier) { n.opts = o }
}

// NewNotifier creates a notifier and registers it on src.
func NewNotifier(src Source, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		api:      soap.NewAPI(src),
		wait:     defaultWait,
		retry:    retryDelay,
		logger:   zap.NewNop(),
		resultCh: make(chan tea.Msg, 64),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	src.OnNotify(n.handle)
	return n
}

// Start returns a tea.Cmd that starts the long-poll loop and waits for the
// first message. Call Next after each message to keep listening.
func (n *Notifier) Start() tea.Cmd {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = true
	n.stopCh = make(chan struct{})
	stop := n.stopCh
	n.mu.Unlock()

	go n.loop(stop)

	return n.Next()
}

// Stop halts the long-poll loop. Notifications carried by other responses
// are still delivered.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.halt() {
		n.status.State = SyncIdle
	}
}

// halt ends the loop. n.mu must be held.
func (n *Notifier) halt() bool {
	if !n.running {
		return false
	}
	close(n.stopCh)
	n.running = false
	return true
}

// Next returns a tea.Cmd that waits for the next message.
func (n *Notifier) Next() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-n.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}

// Messages exposes the message channel for consumers outside a tea program.
func (n *Notifier) Messages() <-chan tea.Msg {
	return n.resultCh
}

// Statuses returns the current state of the channel.
func (n *Notifier) Statuses() []SyncStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return []SyncStatus{n.status}
}

func (n *Notifier) loop(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		n.setState(SyncRunning, nil)
		err := n.api.NoOp(ctx, true, n.wait.Milliseconds())
		if err == nil {
			n.setState(SyncIdle, nil)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		n.setState(SyncError, err)
		if soap.IsAuthError(err) {
			n.logger.Warn("notification channel lost authentication", zap.Error(err))
			n.send(AuthErrorMsg{Message: "session expired, run login again"})
			n.mu.Lock()
			n.halt()
			n.mu.Unlock()
			return
		}
		n.logger.Warn("noop failed", zap.Error(err))

		select {
		case <-stop:
			return
		case <-time.After(n.retry):
		}
	}
}

// handle runs inside the SOAP client for every response carrying
// notifications.
func (n *Notifier) handle(session string, blocks []soap.Notification) {
	n.mu.Lock()
	reset := session != n.session
	n.session = session
	n.status.Session = session
	for _, b := range blocks {
		if b.Seq > n.status.LastSeq || reset {
			n.status.LastSeq = b.Seq
		}
	}
	n.status.LastSync = time.Now()
	n.mu.Unlock()

	if reset {
		n.send(SessionResetMsg{Session: session})
	}
	for _, b := range blocks {
		d := normalize.DeltaFromWire(b, n.opts)
		n.logger.Debug("notification",
			zap.Int("seq", d.Seq),
			zap.Int("contacts", len(d.CreatedContacts)+len(d.ModifiedContacts)),
			zap.Int("folders", len(d.CreatedFolders)+len(d.ModifiedFolders)),
			zap.Int("deleted", len(d.Deleted)),
		)
		n.send(NotificationMsg{Delta: d})
	}
}

func (n *Notifier) setState(state SyncState, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if state == SyncRunning && !n.running {
		return
	}
	n.status.State = state
	n.status.Error = err
	if state == SyncIdle && err == nil {
		n.status.LastSync = time.Now()
	}
}

// send delivers msg without blocking the SOAP client. The server never
// resends an acknowledged block, so when the channel is full the message
// joins a backlog that a pump goroutine feeds in order.
func (n *Notifier) send(msg tea.Msg) {
	n.qmu.Lock()
	defer n.qmu.Unlock()

	if len(n.backlog) == 0 {
		select {
		case n.resultCh <- msg:
			return
		default:
		}
	}
	n.backlog = append(n.backlog, msg)
	if !n.pumping {
		n.pumping = true
		n.logger.Debug("message channel full, queueing", zap.Int("backlog", len(n.backlog)))
		go n.pump()
	}
}

// pump moves the backlog into the channel, one message at a time.
func (n *Notifier) pump() {
	for {
		n.qmu.Lock()
		if len(n.backlog) == 0 {
			n.pumping = false
			n.qmu.Unlock()
			return
		}
		msg := n.backlog[0]
		n.qmu.Unlock()

		n.resultCh <- msg

		n.qmu.Lock()
		n.backlog[0] = nil
		n.backlog = n.backlog[1:]
		n.qmu.Unlock()
	}
}

// Pending reports how many messages wait behind a full channel.
func (n *Notifier) Pending() int {
	n.qmu.Lock()
	defer n.qmu.Unlock()
	return len(n.backlog)
}
