// Package cache holds the in-memory contacts and folders of a mailbox and
// the pure reducers that keep them consistent across optimistic edits,
// server responses and change notifications.
//
// Reduce never mutates the State it is given. Contact slices are shared
// between successive states and are therefore never written in place.
package cache

import (
	"github.com/nhle/contacts/internal/model"
)

// State is a snapshot of the cache.
type State struct {
	// Contacts maps a folder id to the contacts of that folder, in server
	// order.
	Contacts map[string][]model.Contact

	// Folders is the flat list of contact folders.
	Folders []model.ContactsFolder

	// Status records, per folder id, whether its contacts were fetched.
	Status map[string]bool

	// PendingActions is true while at least one operation is in flight.
	PendingActions bool

	// LastSeq is the sequence number of the last applied notification.
	LastSeq int

	// Pending holds in-flight operations by request id.
	Pending map[string]PendingOp
}

// NewState returns an empty cache.
func NewState() State {
	return State{
		Contacts: make(map[string][]model.Contact),
		Folders:  []model.ContactsFolder{},
		Status:   make(map[string]bool),
		Pending:  make(map[string]PendingOp),
	}
}

// clone copies the maps and the folder list so the result can be modified
// without touching s. Contact slices are shared.
func (s State) clone() State {
	out := s
	out.Contacts = make(map[string][]model.Contact, len(s.Contacts))
	for k, v := range s.Contacts {
		out.Contacts[k] = v
	}
	out.Status = make(map[string]bool, len(s.Status))
	for k, v := range s.Status {
		out.Status[k] = v
	}
	out.Pending = make(map[string]PendingOp, len(s.Pending))
	for k, v := range s.Pending {
		out.Pending[k] = v
	}
	out.Folders = append([]model.ContactsFolder{}, s.Folders...)
	return out
}

// ContactsIn returns the cached contacts of a folder.
func (s State) ContactsIn(folder string) []model.Contact {
	return s.Contacts[folder]
}

// Fetched reports whether the contacts of folder were already fetched.
func (s State) Fetched(folder string) bool {
	return s.Status[folder]
}

// FindContact locates a contact by id across all folders.
func (s State) FindContact(id string) (model.Contact, string, bool) {
	for folder, contacts := range s.Contacts {
		for _, c := range contacts {
			if c.ID == id {
				return c, folder, true
			}
		}
	}
	return model.Contact{}, "", false
}

// Folder returns the cached folder with the given id.
func (s State) Folder(id string) (model.ContactsFolder, bool) {
	for _, f := range s.Folders {
		if f.ID == id {
			return f, true
		}
	}
	return model.ContactsFolder{}, false
}

// Subfolders returns id and the ids of all folders below it.
func (s State) Subfolders(id string) []string {
	out := []string{id}
	seen := map[string]bool{id: true}
	for i := 0; i < len(out); i++ {
		for _, f := range s.Folders {
			if f.Parent == out[i] && !seen[f.ID] {
				seen[f.ID] = true
				out = append(out, f.ID)
			}
		}
	}
	return out
}
