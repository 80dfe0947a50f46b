package cache

import (
	"sort"

	"github.com/nhle/contacts/internal/model"
)

// Kind names an operation.
type Kind string

const (
	KindCreateContact Kind = "CreateContact"
	KindModifyContact Kind = "ModifyContact"
	KindContactAction Kind = "ContactAction"
	KindCreateFolder  Kind = "CreateFolder"
	KindFolderAction  Kind = "FolderAction"
)

// Contact action ops.
const (
	ContactMove   = "move"
	ContactDelete = "delete"
	ContactTag    = "tag"
	ContactUntag  = "!tag"
)

// Folder action ops.
const (
	FolderMove   = "move"
	FolderRename = "rename"
	FolderUpdate = "update"
	FolderDelete = "delete"
	FolderEmpty  = "empty"
	FolderRevoke = "!grant"
)

// Op is a mutating operation. Its optimistic effect is applied when it
// becomes pending, and it may reconcile the server result when fulfilled.
type Op interface {
	Kind() Kind

	// scope lists the parts of s the operation may change.
	scope(s State) scope
	// apply performs the optimistic edit on a cloned state.
	apply(s *State)
	// reconcile folds the server result into a cloned state.
	reconcile(s *State, r Result)
}

// Result is what the server answered for a fulfilled operation.
type Result struct {
	Contact *model.Contact
	Folder  *model.ContactsFolder
}

type scope struct {
	buckets []string
	folders bool
}

// PendingOp is an in-flight operation together with the cache slice it
// may change, as it was before the optimistic edit.
type PendingOp struct {
	Kind     Kind
	Op       Op
	Snapshot Snapshot
}

// Bucket is the saved state of one folder's contacts.
type Bucket struct {
	Contacts  []model.Contact
	Present   bool
	Fetched   bool
	HasStatus bool
}

// Snapshot holds the buckets and, when Folders is non-nil, the folder list
// captured when an operation became pending.
type Snapshot struct {
	Buckets map[string]Bucket
	Folders []model.ContactsFolder
}

func takeSnapshot(s State, sc scope) Snapshot {
	snap := Snapshot{Buckets: make(map[string]Bucket, len(sc.buckets))}
	for _, id := range sc.buckets {
		if _, done := snap.Buckets[id]; done {
			continue
		}
		contacts, present := s.Contacts[id]
		fetched, hasStatus := s.Status[id]
		snap.Buckets[id] = Bucket{
			Contacts:  contacts,
			Present:   present,
			Fetched:   fetched,
			HasStatus: hasStatus,
		}
	}
	if sc.folders {
		snap.Folders = append([]model.ContactsFolder{}, s.Folders...)
	}
	return snap
}

// restore writes the snapshot back verbatim.
func (snap Snapshot) restore(s *State) {
	for id, b := range snap.Buckets {
		if b.Present {
			s.Contacts[id] = b.Contacts
		} else {
			delete(s.Contacts, id)
		}
		if b.HasStatus {
			s.Status[id] = b.Fetched
		} else {
			delete(s.Status, id)
		}
	}
	if snap.Folders != nil {
		s.Folders = append([]model.ContactsFolder{}, snap.Folders...)
	}
}

// bucketsHolding returns the folders whose bucket contains one of ids.
func bucketsHolding(s State, ids map[string]bool) []string {
	var out []string
	for folder, list := range s.Contacts {
		for _, c := range list {
			if c.ID != "" && ids[c.ID] {
				out = append(out, folder)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// CreateContact creates Contact in Contact.Parent. The contact must carry a
// LocalID so the placeholder can be found again.
type CreateContact struct {
	Contact model.Contact
}

func (CreateContact) Kind() Kind { return KindCreateContact }

func (o CreateContact) scope(State) scope {
	return scope{buckets: []string{o.Contact.Parent}}
}

func (o CreateContact) apply(s *State) {
	placeholder := o.Contact.Clone()
	placeholder.ID = ""
	addContacts(s, o.Contact.Parent, placeholder)
}

// reconcile swaps the placeholder for the server record. When a change
// notification already delivered that record the placeholder is dropped.
func (o CreateContact) reconcile(s *State, r Result) {
	if r.Contact == nil || r.Contact.ID == "" {
		return
	}
	created := r.Contact.Clone()
	created.LocalID = o.Contact.LocalID
	if created.Parent == "" {
		created.Parent = o.Contact.Parent
	}

	isPlaceholder := func(c model.Contact) bool {
		return c.ID == "" && c.LocalID != "" && c.LocalID == o.Contact.LocalID
	}

	if _, _, known := s.FindContact(created.ID); known {
		for folder, list := range s.Contacts {
			if next, changed := withoutContacts(list, isPlaceholder); changed {
				s.Contacts[folder] = next
			}
		}
		return
	}

	for folder, list := range s.Contacts {
		for i, c := range list {
			if !isPlaceholder(c) {
				continue
			}
			if folder == created.Parent {
				next := append([]model.Contact{}, list...)
				next[i] = created
				s.Contacts[folder] = next
				return
			}
			s.Contacts[folder], _ = withoutContacts(list, isPlaceholder)
			addContacts(s, created.Parent, created)
			return
		}
	}
	addContacts(s, created.Parent, created)
}

// ModifyContact replaces a contact with its edited version. The edit is
// final once applied; the response brings nothing new.
type ModifyContact struct {
	Contact model.Contact
}

func (ModifyContact) Kind() Kind { return KindModifyContact }

func (o ModifyContact) scope(s State) scope {
	buckets := []string{o.Contact.Parent}
	if _, folder, ok := s.FindContact(o.Contact.ID); ok {
		buckets = append(buckets, folder)
	}
	return scope{buckets: buckets}
}

func (o ModifyContact) apply(s *State) {
	updateContact(s, o.Contact.Clone())
}

func (ModifyContact) reconcile(*State, Result) {}

// ContactAction moves, deletes, tags or untags a set of contacts. Tagging
// has no optimistic effect; tag changes arrive with the next notification.
type ContactAction struct {
	Op          string
	IDs         []string
	Destination string
	Tag         string
}

func (ContactAction) Kind() Kind { return KindContactAction }

func (o ContactAction) scope(s State) scope {
	switch o.Op {
	case ContactMove:
		return scope{buckets: append(bucketsHolding(s, idSet(o.IDs)), o.Destination)}
	case ContactDelete:
		return scope{buckets: bucketsHolding(s, idSet(o.IDs))}
	}
	return scope{}
}

func (o ContactAction) apply(s *State) {
	switch o.Op {
	case ContactMove:
		ids := idSet(o.IDs)
		var moved []model.Contact
		for _, folder := range bucketsHolding(*s, ids) {
			for _, c := range s.Contacts[folder] {
				if c.ID != "" && ids[c.ID] {
					c.Parent = o.Destination
					moved = append(moved, c)
				}
			}
		}
		removeContacts(s, o.IDs)
		addContacts(s, o.Destination, moved...)
	case ContactDelete:
		removeContacts(s, o.IDs)
	}
}

func (ContactAction) reconcile(*State, Result) {}

// CreateFolder creates a contacts folder. A placeholder with ID LocalID is
// listed until the server answers.
type CreateFolder struct {
	LocalID string
	Name    string
	Parent  string
	Color   int
}

func (CreateFolder) Kind() Kind { return KindCreateFolder }

func (CreateFolder) scope(State) scope { return scope{folders: true} }

func (o CreateFolder) apply(s *State) {
	s.Folders = append(s.Folders, model.ContactsFolder{
		ID:        o.LocalID,
		Parent:    o.Parent,
		Label:     o.Name,
		View:      model.ViewContact,
		Color:     o.Color,
		Deletable: true,
		Local:     true,
	})
	rebasePaths(s, o.LocalID)
}

func (o CreateFolder) reconcile(s *State, r Result) {
	if r.Folder == nil || r.Folder.ID == "" {
		return
	}
	if _, known := s.Folder(r.Folder.ID); known {
		removeFolders(s, []string{o.LocalID})
		return
	}
	if !replaceFolder(s, o.LocalID, *r.Folder) {
		s.Folders = append(s.Folders, *r.Folder)
	}
}

// FolderAction changes a folder. Name and Color are used by rename and
// update, Parent by move and update, GranteeID by !grant.
type FolderAction struct {
	Op        string
	ID        string
	Parent    string
	Name      string
	Color     *int
	GranteeID string
}

func (FolderAction) Kind() Kind { return KindFolderAction }

func (o FolderAction) scope(s State) scope {
	sc := scope{folders: true}
	switch o.Op {
	case FolderDelete:
		sc.buckets = s.Subfolders(o.ID)
	case FolderEmpty:
		if f, ok := s.Folder(o.ID); ok && f.InTrash() {
			sc.buckets = s.Subfolders(o.ID)
		} else {
			sc.buckets = []string{o.ID, model.FolderTrash}
		}
	}
	return sc
}

func (o FolderAction) apply(s *State) {
	f, ok := s.Folder(o.ID)
	if !ok {
		return
	}
	switch o.Op {
	case FolderMove:
		f.Parent = o.Parent
		replaceFolder(s, o.ID, f)
		rebasePaths(s, o.ID)
	case FolderRename:
		f.Label = o.Name
		replaceFolder(s, o.ID, f)
		rebasePaths(s, o.ID)
	case FolderUpdate:
		if o.Parent != "" {
			f.Parent = o.Parent
		}
		if o.Name != "" {
			f.Label = o.Name
		}
		if o.Color != nil {
			f.Color = *o.Color
		}
		replaceFolder(s, o.ID, f)
		rebasePaths(s, o.ID)
	case FolderDelete:
		removeFolders(s, s.Subfolders(o.ID))
	case FolderEmpty:
		o.empty(s, f)
	case FolderRevoke:
		grants := make([]model.Grant, 0, len(f.SharedWith))
		for _, g := range f.SharedWith {
			if g.GranteeID != o.GranteeID {
				grants = append(grants, g)
			}
		}
		f.SharedWith = grants
		replaceFolder(s, o.ID, f)
	}
}

// empty drops everything below a folder in the trash. Any other folder has
// its contacts moved to the trash.
func (o FolderAction) empty(s *State, f model.ContactsFolder) {
	if f.InTrash() {
		subs := s.Subfolders(o.ID)
		removeFolders(s, subs[1:])
		if _, ok := s.Contacts[o.ID]; ok {
			s.Contacts[o.ID] = []model.Contact{}
		}
	} else {
		var moved []model.Contact
		for _, c := range s.Contacts[o.ID] {
			if c.ID == "" {
				continue
			}
			c.Parent = model.FolderTrash
			moved = append(moved, c)
		}
		s.Contacts[o.ID] = []model.Contact{}
		if len(moved) > 0 {
			addContacts(s, model.FolderTrash, moved...)
		}
	}
	f.ItemsCount = 0
	replaceFolder(s, o.ID, f)
}

func (FolderAction) reconcile(*State, Result) {}
