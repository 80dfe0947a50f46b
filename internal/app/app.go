package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/contacts/internal/cache"
	"github.com/nhle/contacts/internal/credential"
	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/soap"
	"github.com/nhle/contacts/internal/store"
	appsync "github.com/nhle/contacts/internal/sync"
)

// ErrNotLoggedIn is returned when no auth token is stored for the
// configured account.
var ErrNotLoggedIn = errors.New("not logged in")

// App wires the contacts cache to one mail account: the SOAP client, the
// operation engine, the notification channel and the local store.
type App struct {
	cfg      *model.AppConfig
	logger   *zap.Logger
	store    store.Store
	vault    *credential.Vault
	client   *soap.Client
	engine   *appsync.Engine
	notifier *appsync.Notifier
}

// Option configures an App.
type Option func(*options)

type options struct {
	store      store.Store
	vault      *credential.Vault
	httpClient *http.Client
	retryDelay time.Duration
}

// WithStore replaces the SQLite store opened from the configuration.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithVault replaces the system keyring.
func WithVault(v *credential.Vault) Option {
	return func(o *options) { o.vault = v }
}

// WithHTTPClient replaces the HTTP client of the SOAP client.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

// WithRetryDelay sets the pause of the notification channel after a
// failed long-poll.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) { o.retryDelay = d }
}

// New opens the local cache and builds the components for cfg. The
// stored auth token, if any, is attached to the client.
func New(ctx context.Context, cfg *model.AppConfig, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg.Server.BaseURL == "" {
		return nil, fmt.Errorf("server.base_url is not configured")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		s, err := openStore(cfg.Cache.DBPath)
		if err != nil {
			return nil, err
		}
		o.store = s
	}
	if o.vault == nil {
		v, err := credential.Open()
		if err != nil {
			o.store.Close()
			return nil, err
		}
		o.vault = v
	}

	initial, err := o.store.LoadState(ctx)
	if err != nil {
		o.store.Close()
		return nil, fmt.Errorf("loading cache: %w", err)
	}

	clientOpts := []soap.Option{soap.WithLogger(logger.Named("soap"))}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, soap.WithHTTPClient(o.httpClient))
	}
	if cfg.Server.TimeoutSec > 0 {
		clientOpts = append(clientOpts, soap.WithTimeout(time.Duration(cfg.Server.TimeoutSec)*time.Second))
	}
	client := soap.NewClient(cfg.Server.BaseURL, "", clientOpts...)

	engine := appsync.NewEngine(
		soap.NewAPI(client),
		cache.NewContainer(initial),
		appsync.WithLogger(logger.Named("engine")),
		appsync.WithPersister(o.store),
		appsync.WithSearch(cfg.Search),
		appsync.WithImageOrigin(cfg.ImageOrigin()),
	)

	notifierOpts := []appsync.NotifierOption{
		appsync.WithNotifierLogger(logger.Named("notify")),
		appsync.WithNormalizeOptions(engine.Options()),
	}
	if cfg.Server.WaitSec > 0 {
		notifierOpts = append(notifierOpts, appsync.WithWait(time.Duration(cfg.Server.WaitSec)*time.Second))
	}
	if o.retryDelay > 0 {
		notifierOpts = append(notifierOpts, appsync.WithRetryDelay(o.retryDelay))
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		store:    o.store,
		vault:    o.vault,
		client:   client,
		engine:   engine,
		notifier: appsync.NewNotifier(client, notifierOpts...),
	}

	if token, err := a.vault.Token(cfg.Server.Username); err == nil {
		client.SetAuthToken(token)
	} else if !errors.Is(err, credential.ErrNoToken) {
		logger.Warn("reading stored token", zap.Error(err))
	}

	logger.Debug("app ready",
		zap.String("server", cfg.Server.BaseURL),
		zap.String("user", cfg.Server.Username),
		zap.Int("folders", len(initial.Folders)),
		zap.Int("last_seq", initial.LastSeq),
	)
	return a, nil
}

func openStore(path string) (store.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return s, nil
}

// Engine returns the operation engine.
func (a *App) Engine() *appsync.Engine {
	return a.engine
}

// Notifier returns the notification channel.
func (a *App) Notifier() *appsync.Notifier {
	return a.notifier
}

// Close stops the notification channel and closes the store.
func (a *App) Close() error {
	a.notifier.Stop()
	return a.store.Close()
}

// Login authenticates the configured account with password and stores
// the resulting token.
func (a *App) Login(ctx context.Context, password string) error {
	user := a.cfg.Server.Username
	if user == "" {
		return fmt.Errorf("server.username is not configured")
	}

	token, err := soap.NewAPI(a.client).Authenticate(ctx, user, password)
	if err != nil {
		return err
	}
	a.client.SetAuthToken(token)

	if err := a.vault.SaveToken(user, token); err != nil {
		return err
	}
	a.logger.Info("logged in", zap.String("user", user))
	return nil
}

// Logout forgets the stored token and empties the local cache.
func (a *App) Logout() error {
	a.client.SetAuthToken("")
	if err := a.vault.Forget(a.cfg.Server.Username); err != nil {
		return err
	}
	a.engine.Update(cache.Restored{State: cache.NewState()})
	return nil
}

// Do runs an engine command, applies its message and then any
// notification that arrived with the response.
func (a *App) Do(ctx context.Context, cmd tea.Cmd) (tea.Msg, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	msg, err := a.engine.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := a.Drain(); err != nil {
		return msg, err
	}
	return msg, appsync.MsgError(msg)
}

// Refresh fetches the folder tree, then the contacts of every folder.
// Folders already cached are refetched only with force.
func (a *App) Refresh(ctx context.Context, force bool) error {
	if _, err := a.Do(ctx, a.engine.FetchFolders()); err != nil {
		return err
	}
	for _, f := range a.engine.State().Folders {
		if f.Broken {
			continue
		}
		if _, err := a.Do(ctx, a.engine.FetchContacts(f.ID, force)); err != nil {
			return fmt.Errorf("folder %s: %w", f.Path, err)
		}
	}
	return nil
}

// Drain applies the notification messages already queued, including the
// notifier backlog, without waiting for more.
func (a *App) Drain() error {
	for {
		select {
		case msg := <-a.notifier.Messages():
			if err := a.update(msg); err != nil {
				return err
			}
		default:
			if a.notifier.Pending() == 0 {
				return nil
			}
			select {
			case msg := <-a.notifier.Messages():
				if err := a.update(msg); err != nil {
					return err
				}
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

// Watch keeps the cache in sync with the server until ctx ends or the
// session expires. onChange receives the state after every notification.
func (a *App) Watch(ctx context.Context, onChange func(cache.State)) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if onChange != nil {
		a.engine.Cache().Subscribe(onChange)
	}

	// Messages are read from the channel below, not through the tea.Cmd.
	_ = a.notifier.Start()
	defer a.notifier.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-a.notifier.Messages():
			if err := a.update(msg); err != nil {
				return err
			}
		}
	}
}

// update routes a notifier message to the engine.
func (a *App) update(msg tea.Msg) error {
	switch msg := msg.(type) {
	case appsync.AuthErrorMsg:
		return &soap.AuthError{Message: msg.Message}
	case appsync.SessionResetMsg:
		a.logger.Debug("session reset", zap.String("session", msg.Session))
	}
	a.engine.Update(msg)
	return nil
}

func (a *App) requireLogin() error {
	if _, err := a.vault.Token(a.cfg.Server.Username); err != nil {
		if errors.Is(err, credential.ErrNoToken) {
			return ErrNotLoggedIn
		}
		return err
	}
	return nil
}
