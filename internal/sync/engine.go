package sync

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/contacts/internal/cache"
	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/normalize"
	"github.com/nhle/contacts/internal/soap"
)

// Persister saves the cache after it settles.
type Persister interface {
	SaveState(ctx context.Context, s cache.State) error
}

// FoldersErrorMsg is a tea.Msg sent when the folder tree could not be
// fetched.
type FoldersErrorMsg struct {
	Err error
}

// ContactsErrorMsg is a tea.Msg sent when a folder's contacts could not be
// fetched.
type ContactsErrorMsg struct {
	Folder string
	Err    error
}

// SearchResultMsg is a tea.Msg carrying a search result. Search results
// are not cached.
type SearchResultMsg struct {
	Query    string
	Contacts []model.Contact
	More     bool
	Err      error
}

// ExportResultMsg is a tea.Msg carrying an exported CSV.
type ExportResultMsg struct {
	Folder string
	CSV    string
	Err    error
}

// MountpointsMsg is a tea.Msg sent when shared address books were mounted.
// The new folders reach the cache through the next notification.
type MountpointsMsg struct {
	Folders []model.ContactsFolder
	Err     error
}

// Mountpoint names a shared address book to mount.
type Mountpoint struct {
	Parent   string
	Name     string
	OwnerID  string
	RemoteID string
	Color    *int
}

// Engine runs the mutating operations of the contacts core. Every entry
// point applies its optimistic edit before returning and hands back a
// tea.Cmd performing the server call. The message of that command must be
// fed back through Update.
type Engine struct {
	api    *soap.API
	cache  *cache.Container
	store  Persister
	logger *zap.Logger
	opts   normalize.Options
	limit  int
	sortBy string
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPersister saves the cache whenever no operation is in flight.
func WithPersister(p Persister) Option {
	return func(e *Engine) { e.store = p }
}

// WithSearch sets the page size and sort order of searches.
func WithSearch(cfg model.SearchConfig) Option {
	return func(e *Engine) {
		e.limit = cfg.Limit
		e.sortBy = cfg.SortBy
	}
}

// WithImageOrigin sets the origin of contact thumbnail URLs.
func WithImageOrigin(origin string) Option {
	return func(e *Engine) { e.opts.ImageOrigin = origin }
}

// WithIDGenerator replaces the generator of request and placeholder ids.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// NewEngine creates an engine on top of api and c.
func NewEngine(api *soap.API, c *cache.Container, opts ...Option) *Engine {
	e := &Engine{
		api:    api,
		cache:  c,
		logger: zap.NewNop(),
		limit:  soap.DefaultSearchLimit,
		sortBy: soap.DefaultSearchSortBy,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the container the engine writes to.
func (e *Engine) Cache() *cache.Container {
	return e.cache
}

// State returns the current cache state.
func (e *Engine) State() cache.State {
	return e.cache.State()
}

// Options returns the normalization options used for wire records.
func (e *Engine) Options() normalize.Options {
	return e.opts
}

// Update applies a message produced by one of the engine's commands or by
// the Notifier. Messages of other types are ignored.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case cache.Event:
		e.dispatch(msg)
	case NotificationMsg:
		e.dispatch(cache.Synced{Delta: msg.Delta})
	case SessionResetMsg:
		e.dispatch(cache.SessionReset{})
	case FoldersErrorMsg:
		e.logger.Warn("fetching folders failed", zap.Error(msg.Err))
	case ContactsErrorMsg:
		e.logger.Warn("fetching contacts failed",
			zap.String("folder", msg.Folder),
			zap.Error(msg.Err),
		)
	}
	return nil
}

// Run executes cmd and feeds its message back through Update. When ctx ends
// first Run returns its error; the call still completes and its message is
// still applied.
func (e *Engine) Run(ctx context.Context, cmd tea.Cmd) (tea.Msg, error) {
	if cmd == nil {
		return nil, nil
	}
	done := make(chan tea.Msg, 1)
	go func() {
		msg := cmd()
		e.Update(msg)
		done <- msg
	}()
	select {
	case msg := <-done:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MsgError returns the error carried by a message of the engine, if any.
func MsgError(msg tea.Msg) error {
	switch msg := msg.(type) {
	case cache.Rejected:
		return msg.Err
	case FoldersErrorMsg:
		return msg.Err
	case ContactsErrorMsg:
		return msg.Err
	case SearchResultMsg:
		return msg.Err
	case ExportResultMsg:
		return msg.Err
	case MountpointsMsg:
		return msg.Err
	}
	return nil
}

func (e *Engine) dispatch(ev cache.Event) {
	s := e.cache.Dispatch(ev)
	if e.store == nil || s.PendingActions {
		return
	}
	if err := e.store.SaveState(context.Background(), s); err != nil {
		e.logger.Error("saving cache", zap.Error(err))
	}
}

// run registers op as pending and returns the command performing call.
func (e *Engine) run(op cache.Op, call func(ctx context.Context) (cache.Result, error)) tea.Cmd {
	id := e.newID()
	e.dispatch(cache.Pending{RequestID: id, Op: op})
	e.logger.Debug("operation pending",
		zap.String("kind", string(op.Kind())),
		zap.String("request", id),
	)

	return func() tea.Msg {
		res, err := call(context.Background())
		if err != nil {
			e.logger.Warn("operation rejected",
				zap.String("kind", string(op.Kind())),
				zap.String("request", id),
				zap.Error(err),
			)
			return cache.Rejected{RequestID: id, Err: err}
		}
		return cache.Fulfilled{RequestID: id, Result: res}
	}
}

// CreateContact creates c in c.Parent. The returned contact is the
// placeholder as listed in the cache until the server answers.
func (e *Engine) CreateContact(c model.Contact) (model.Contact, tea.Cmd) {
	draft := c.Clone()
	draft.ID = ""
	if draft.LocalID == "" {
		draft.LocalID = e.newID()
	}
	if draft.Parent == "" {
		draft.Parent = model.FolderContacts
	}

	cmd := e.run(cache.CreateContact{Contact: draft}, func(ctx context.Context) (cache.Result, error) {
		rec, err := e.api.CreateContact(ctx, draft.Parent, draft.Tags, normalize.ContactToWire(draft))
		if err != nil {
			return cache.Result{}, err
		}
		if rec.Parent == nil {
			rec.Parent = soap.Ptr(draft.Parent)
		}
		created, ok := normalize.ContactFromWire(*rec, e.opts)
		if !ok {
			return cache.Result{}, fmt.Errorf("creating contact: %w", soap.ErrUnexpectedResponse)
		}
		return cache.Result{Contact: &created}, nil
	})
	return draft, cmd
}

// ModifyContact saves next over the cached version of the same contact.
// The folder is not changed; use MoveContacts for that. An uncached
// contact without a folder is filed under Contacts.
func (e *Engine) ModifyContact(next model.Contact) tea.Cmd {
	next = next.Clone()
	prev, folder, ok := e.cache.State().FindContact(next.ID)
	switch {
	case ok:
		next.Parent = folder
	case next.Parent == "":
		next.Parent = model.FolderContacts
	}
	attrs := normalize.ModifyAttrs(prev, next)

	return e.run(cache.ModifyContact{Contact: next}, func(ctx context.Context) (cache.Result, error) {
		_, err := e.api.ModifyContact(ctx, next.ID, attrs)
		return cache.Result{}, err
	})
}

func (e *Engine) contactAction(action cache.ContactAction) tea.Cmd {
	spec := soap.ContactActionSpec{
		Op:      action.Op,
		IDs:     strings.Join(action.IDs, ","),
		Folder:  action.Destination,
		TagName: action.Tag,
	}
	return e.run(action, func(ctx context.Context) (cache.Result, error) {
		_, err := e.api.ContactAction(ctx, spec)
		return cache.Result{}, err
	})
}

// MoveContacts moves contacts to folder.
func (e *Engine) MoveContacts(ids []string, folder string) tea.Cmd {
	return e.contactAction(cache.ContactAction{Op: cache.ContactMove, IDs: ids, Destination: folder})
}

// TrashContacts moves contacts to the trash.
func (e *Engine) TrashContacts(ids []string) tea.Cmd {
	return e.MoveContacts(ids, model.FolderTrash)
}

// DeleteContacts deletes contacts permanently.
func (e *Engine) DeleteContacts(ids []string) tea.Cmd {
	return e.contactAction(cache.ContactAction{Op: cache.ContactDelete, IDs: ids})
}

// TagContacts applies the tag named tag.
func (e *Engine) TagContacts(ids []string, tag string) tea.Cmd {
	return e.contactAction(cache.ContactAction{Op: cache.ContactTag, IDs: ids, Tag: tag})
}

// UntagContacts removes the tag named tag.
func (e *Engine) UntagContacts(ids []string, tag string) tea.Cmd {
	return e.contactAction(cache.ContactAction{Op: cache.ContactUntag, IDs: ids, Tag: tag})
}

// CreateFolder creates an address book below parent.
func (e *Engine) CreateFolder(name, parent string, color int) tea.Cmd {
	if parent == "" {
		parent = model.FolderRoot
	}
	op := cache.CreateFolder{LocalID: e.newID(), Name: name, Parent: parent, Color: color}
	req := soap.NewFolder{Name: name, Parent: parent, View: model.ViewContact}
	if color != 0 {
		req.Color = soap.Ptr(color)
	}

	return e.run(op, func(ctx context.Context) (cache.Result, error) {
		rec, err := e.api.CreateFolder(ctx, req)
		if err != nil {
			return cache.Result{}, err
		}
		f := normalize.FolderFromWire(*rec)
		return cache.Result{Folder: &f}, nil
	})
}

func (e *Engine) folderAction(action cache.FolderAction, recursive bool) tea.Cmd {
	spec := soap.FolderActionSpec{
		Op:        action.Op,
		ID:        action.ID,
		Parent:    action.Parent,
		Name:      action.Name,
		Color:     action.Color,
		GranteeID: action.GranteeID,
	}
	if recursive {
		spec.Recursive = soap.Ptr(true)
	}
	return e.run(action, func(ctx context.Context) (cache.Result, error) {
		_, err := e.api.FolderAction(ctx, spec)
		return cache.Result{}, err
	})
}

// MoveFolder moves folder id below parent.
func (e *Engine) MoveFolder(id, parent string) tea.Cmd {
	return e.folderAction(cache.FolderAction{Op: cache.FolderMove, ID: id, Parent: parent}, false)
}

// RenameFolder renames folder id.
func (e *Engine) RenameFolder(id, name string) tea.Cmd {
	return e.folderAction(cache.FolderAction{Op: cache.FolderRename, ID: id, Name: name}, false)
}

// UpdateFolder changes name, parent and color of folder id in one call.
// Empty values and a nil color are left unchanged.
func (e *Engine) UpdateFolder(id, name, parent string, color *int) tea.Cmd {
	return e.folderAction(cache.FolderAction{
		Op:     cache.FolderUpdate,
		ID:     id,
		Name:   name,
		Parent: parent,
		Color:  color,
	}, false)
}

// DeleteFolder deletes folder id and everything below it.
func (e *Engine) DeleteFolder(id string) tea.Cmd {
	return e.folderAction(cache.FolderAction{Op: cache.FolderDelete, ID: id}, false)
}

// EmptyFolder empties folder id. Emptying the trash also removes its
// subfolders.
func (e *Engine) EmptyFolder(id string) tea.Cmd {
	return e.folderAction(cache.FolderAction{Op: cache.FolderEmpty, ID: id}, model.IsTrash(id))
}

// RevokeGrant stops sharing folder id with grantee.
func (e *Engine) RevokeGrant(id, grantee string) tea.Cmd {
	return e.folderAction(cache.FolderAction{Op: cache.FolderRevoke, ID: id, GranteeID: grantee}, false)
}

// FetchFolders loads the folder tree.
func (e *Engine) FetchFolders() tea.Cmd {
	return func() tea.Msg {
		tree, err := e.api.GetFolders(context.Background())
		if err != nil {
			return FoldersErrorMsg{Err: err}
		}
		return cache.FoldersFetched{Folders: normalize.FoldersFromWire(tree)}
	}
}

// FetchContacts loads every contact of folder, page by page. Folders that
// were already fetched are skipped unless force is set; the returned
// command is then nil.
func (e *Engine) FetchContacts(folder string, force bool) tea.Cmd {
	if !force && e.cache.State().Fetched(folder) {
		return nil
	}
	limit, sortBy := e.limit, e.sortBy

	return func() tea.Msg {
		ctx := context.Background()
		var contacts []model.Contact
		offset := 0
		for {
			resp, err := e.api.Search(ctx, soap.FolderQuery(folder), soap.SearchOptions{
				Offset: offset,
				Limit:  limit,
				SortBy: sortBy,
			})
			if err != nil {
				return ContactsErrorMsg{Folder: folder, Err: err}
			}
			contacts = append(contacts, normalize.ContactsFromWire(resp.Contacts, e.opts)...)
			offset += len(resp.Contacts)
			if !resp.More || len(resp.Contacts) == 0 {
				break
			}
		}
		e.logger.Debug("contacts fetched",
			zap.String("folder", folder),
			zap.Int("count", len(contacts)),
		)
		return cache.ContactsFetched{Folder: folder, Contacts: contacts, Done: true}
	}
}

// Search runs a free text contact search. Results bypass the cache.
func (e *Engine) Search(query string, offset int) tea.Cmd {
	limit, sortBy := e.limit, e.sortBy
	return func() tea.Msg {
		resp, err := e.api.Search(context.Background(), query, soap.SearchOptions{
			Offset: offset,
			Limit:  limit,
			SortBy: sortBy,
		})
		if err != nil {
			return SearchResultMsg{Query: query, Err: err}
		}
		return SearchResultMsg{
			Query:    query,
			Contacts: normalize.ContactsFromWire(resp.Contacts, e.opts),
			More:     resp.More,
		}
	}
}

// Export returns the contacts of folder as CSV.
func (e *Engine) Export(folder string) tea.Cmd {
	return func() tea.Msg {
		csv, err := e.api.ExportContacts(context.Background(), folder)
		return ExportResultMsg{Folder: folder, CSV: csv, Err: err}
	}
}

// CreateMountpoints mounts shared address books.
func (e *Engine) CreateMountpoints(mounts []Mountpoint) tea.Cmd {
	links := make([]soap.NewLink, 0, len(mounts))
	for _, m := range mounts {
		parent := m.Parent
		if parent == "" {
			parent = model.FolderRoot
		}
		links = append(links, soap.NewLink{
			Parent:   parent,
			Name:     m.Name,
			View:     model.ViewContact,
			OwnerID:  m.OwnerID,
			RemoteID: m.RemoteID,
			Color:    m.Color,
		})
	}
	return func() tea.Msg {
		recs, err := e.api.CreateMountpoints(context.Background(), links)
		if err != nil {
			return MountpointsMsg{Err: err}
		}
		folders := make([]model.ContactsFolder, 0, len(recs))
		for _, rec := range recs {
			folders = append(folders, normalize.FolderFromWire(rec))
		}
		return MountpointsMsg{Folders: folders}
	}
}
