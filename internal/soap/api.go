package soap

import (
	"context"
	"fmt"
	"strings"
)

// Defaults applied to searches when the caller leaves them unset.
const (
	DefaultSearchLimit  = 100
	DefaultSearchSortBy = "nameAsc"
)

// API exposes the operations used by the contacts core with typed requests
// and responses on top of an Invoker.
type API struct {
	inv Invoker
}

// NewAPI wraps an Invoker.
func NewAPI(inv Invoker) *API {
	return &API{inv: inv}
}

// SearchOptions controls paging of a contact search.
type SearchOptions struct {
	Offset int
	Limit  int
	SortBy string
}

// FolderQuery builds the search query selecting the contacts of one folder.
func FolderQuery(folderID string) string {
	return fmt.Sprintf("inid:%q", folderID)
}

// Search runs a contact search.
func (a *API) Search(
	ctx context.Context,
	query string,
	opts SearchOptions,
) (*SearchResponse, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	if opts.SortBy == "" {
		opts.SortBy = DefaultSearchSortBy
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	req := SearchRequest{
		JSNS:   NSMail,
		Types:  "contact",
		Query:  query,
		Offset: opts.Offset,
		Limit:  opts.Limit,
		SortBy: opts.SortBy,
	}

	var resp SearchResponse
	if err := a.inv.Invoke(ctx, "Search", req, &resp); err != nil {
		return nil, fmt.Errorf("searching contacts %q: %w", query, err)
	}
	return &resp, nil
}

// CreateContact creates a contact in folder with the given attributes.
func (a *API) CreateContact(
	ctx context.Context,
	folder string,
	tags []string,
	attrs []Attr,
) (*ContactRecord, error) {
	req := CreateContactRequest{
		JSNS: NSMail,
		Contact: NewContact{
			Folder: folder,
			Tags:   strings.Join(tags, ","),
			Attrs:  attrs,
		},
	}

	var resp CreateContactResponse
	if err := a.inv.Invoke(ctx, "CreateContact", req, &resp); err != nil {
		return nil, fmt.Errorf("creating contact in folder %s: %w", folder, err)
	}
	if len(resp.Contacts) == 0 {
		return nil, fmt.Errorf("creating contact in folder %s: %w", folder, ErrUnexpectedResponse)
	}
	return &resp.Contacts[0], nil
}

// ModifyContact sends the attribute set of an existing contact. Attributes
// not listed are left untouched on the server; an empty value clears one.
func (a *API) ModifyContact(
	ctx context.Context,
	id string,
	attrs []Attr,
) (*ContactRecord, error) {
	req := ModifyContactRequest{
		JSNS:    NSMail,
		Force:   "1",
		Replace: "0",
		Contact: ModifiedContact{ID: id, Attrs: attrs},
	}

	var resp ModifyContactResponse
	if err := a.inv.Invoke(ctx, "ModifyContact", req, &resp); err != nil {
		return nil, fmt.Errorf("modifying contact %s: %w", id, err)
	}
	if len(resp.Contacts) == 0 {
		return nil, nil
	}
	return &resp.Contacts[0], nil
}

// ContactAction runs a move, delete, tag or !tag action on contacts.
func (a *API) ContactAction(
	ctx context.Context,
	spec ContactActionSpec,
) (*ActionResult, error) {
	switch spec.Op {
	case ContactOpMove, ContactOpDelete, ContactOpTag, ContactOpUntag:
	default:
		return nil, fmt.Errorf("unknown contact action %q", spec.Op)
	}

	req := ContactActionRequest{JSNS: NSMail, Action: spec}

	var resp ContactActionResponse
	if err := a.inv.Invoke(ctx, "ContactAction", req, &resp); err != nil {
		return nil, fmt.Errorf("contact action %s on %s: %w", spec.Op, spec.IDs, err)
	}
	return &resp.Action, nil
}

// CreateFolder creates an address book.
func (a *API) CreateFolder(
	ctx context.Context,
	folder NewFolder,
) (*FolderRecord, error) {
	if folder.View == "" {
		folder.View = "contact"
	}
	req := CreateFolderRequest{JSNS: NSMail, Folder: folder}

	var resp CreateFolderResponse
	if err := a.inv.Invoke(ctx, "CreateFolder", req, &resp); err != nil {
		return nil, fmt.Errorf("creating folder %q: %w", folder.Name, err)
	}
	if len(resp.Folders) == 0 {
		return nil, fmt.Errorf("creating folder %q: %w", folder.Name, ErrUnexpectedResponse)
	}
	return &resp.Folders[0], nil
}

// FolderAction runs a move, delete, rename, update, empty or !grant action.
func (a *API) FolderAction(
	ctx context.Context,
	spec FolderActionSpec,
) (*ActionResult, error) {
	switch spec.Op {
	case FolderOpMove, FolderOpDelete, FolderOpRename,
		FolderOpUpdate, FolderOpEmpty, FolderOpRevoke:
	default:
		return nil, fmt.Errorf("unknown folder action %q", spec.Op)
	}

	req := FolderActionRequest{JSNS: NSMail, Action: spec}

	var resp FolderActionResponse
	if err := a.inv.Invoke(ctx, "FolderAction", req, &resp); err != nil {
		return nil, fmt.Errorf("folder action %s on %s: %w", spec.Op, spec.ID, err)
	}
	return &resp.Action, nil
}

// GetFolders returns the contact folder tree of the mailbox.
func (a *API) GetFolders(ctx context.Context) ([]FolderRecord, error) {
	req := GetFolderRequest{JSNS: NSMail, View: "contact", Tree: true}

	var resp GetFolderResponse
	if err := a.inv.Invoke(ctx, "GetFolder", req, &resp); err != nil {
		return nil, fmt.Errorf("fetching folders: %w", err)
	}
	return resp.Folders, nil
}

// ExportContacts returns the contacts of folder as Thunderbird CSV.
// An empty folder exports the whole mailbox.
func (a *API) ExportContacts(ctx context.Context, folder string) (string, error) {
	req := ExportContactsRequest{
		JSNS:        NSMail,
		ContentType: "csv",
		CSVFormat:   "thunderbird-csv",
		Folder:      folder,
	}

	var resp ExportContactsResponse
	if err := a.inv.Invoke(ctx, "ExportContacts", req, &resp); err != nil {
		return "", fmt.Errorf("exporting contacts of %q: %w", folder, err)
	}
	var b strings.Builder
	for _, c := range resp.Content {
		b.WriteString(c.Value)
	}
	return b.String(), nil
}

// CreateMountpoints mounts shared address books in one batch. Per-item
// faults do not fail the batch; the mounted links are returned.
func (a *API) CreateMountpoints(
	ctx context.Context,
	links []NewLink,
) ([]FolderRecord, error) {
	req := BatchRequest{JSNS: NSZimbra, OnError: "continue"}
	for _, l := range links {
		if l.View == "" {
			l.View = "contact"
		}
		req.CreateMountpoint = append(req.CreateMountpoint, CreateMountpointRequest{
			JSNS: NSMail,
			Link: l,
		})
	}

	var resp BatchResponse
	if err := a.inv.Invoke(ctx, "Batch", req, &resp); err != nil {
		return nil, fmt.Errorf("creating %d mountpoints: %w", len(links), err)
	}

	var out []FolderRecord
	for _, r := range resp.CreateMountpoint {
		out = append(out, r.Links...)
	}
	if len(out) == 0 && len(resp.Faults) > 0 {
		return nil, newFault("CreateMountpoint", resp.Faults[0])
	}
	return out, nil
}

// NoOp keeps the session alive. With wait set, the server holds the
// request until a notification is pending or timeout elapses.
func (a *API) NoOp(ctx context.Context, wait bool, timeoutMs int64) error {
	req := NoOpRequest{JSNS: NSMail}
	if wait {
		req.Wait = 1
		req.Timeout = timeoutMs
	}
	var resp NoOpResponse
	if err := a.inv.Invoke(ctx, "NoOp", req, &resp); err != nil {
		return fmt.Errorf("noop: %w", err)
	}
	if resp.WaitDisallowed {
		return fmt.Errorf("noop: server disallowed waiting")
	}
	return nil
}

// Authenticate logs in with a password and returns the auth token.
func (a *API) Authenticate(ctx context.Context, username, password string) (string, error) {
	req := AuthRequest{
		JSNS:     NSAccount,
		Account:  AccountSelector{By: "name", Value: username},
		Password: Content{Value: password},
	}

	var resp AuthResponse
	if err := a.inv.Invoke(ctx, "Auth", req, &resp); err != nil {
		if IsFault(err, CodeAuthFailed) {
			return "", &AuthError{Message: fmt.Sprintf("authentication failed for %s", username)}
		}
		return "", fmt.Errorf("authenticating %s: %w", username, err)
	}
	if len(resp.AuthToken) == 0 || resp.AuthToken[0].Value == "" {
		return "", fmt.Errorf("authenticating %s: %w", username, ErrUnexpectedResponse)
	}
	return resp.AuthToken[0].Value, nil
}
