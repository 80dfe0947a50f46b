package cache

import (
	"path"
	"strings"

	"github.com/nhle/contacts/internal/model"
)

// The helpers below work on a State produced by clone: they replace map
// entries and slices but never write into an existing slice.

// withContact returns a new slice with c appended, or with the entry of the
// same id replaced.
func withContact(list []model.Contact, c model.Contact) []model.Contact {
	out := make([]model.Contact, 0, len(list)+1)
	replaced := false
	for _, existing := range list {
		if c.ID != "" && existing.ID == c.ID {
			out = append(out, c)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, c)
	}
	return out
}

// withoutContacts returns a new slice without the contacts matched by drop,
// and whether anything was removed.
func withoutContacts(list []model.Contact, drop func(model.Contact) bool) ([]model.Contact, bool) {
	out := make([]model.Contact, 0, len(list))
	for _, c := range list {
		if !drop(c) {
			out = append(out, c)
		}
	}
	return out, len(out) != len(list)
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// AddContacts inserts or replaces contacts in the bucket of folder.
func AddContacts(s State, folder string, contacts ...model.Contact) State {
	out := s.clone()
	addContacts(&out, folder, contacts...)
	return out
}

func addContacts(s *State, folder string, contacts ...model.Contact) {
	list := s.Contacts[folder]
	for _, c := range contacts {
		list = withContact(list, c)
	}
	if list == nil {
		list = []model.Contact{}
	}
	s.Contacts[folder] = list
}

// RemoveContacts drops the contacts with the given ids from every folder.
func RemoveContacts(s State, ids []string) State {
	out := s.clone()
	removeContacts(&out, ids)
	return out
}

func removeContacts(s *State, ids []string) {
	set := idSet(ids)
	for folder, list := range s.Contacts {
		if next, changed := withoutContacts(list, func(c model.Contact) bool {
			return c.ID != "" && set[c.ID]
		}); changed {
			s.Contacts[folder] = next
		}
	}
}

// UpdateContact replaces a contact by id. When its parent changed it is
// moved to the bucket of the new parent; an unknown contact is added.
func UpdateContact(s State, c model.Contact) State {
	out := s.clone()
	updateContact(&out, c)
	return out
}

func updateContact(s *State, c model.Contact) {
	_, folder, found := s.FindContact(c.ID)
	if found && folder == c.Parent {
		s.Contacts[folder] = withContact(s.Contacts[folder], c)
		return
	}
	if found {
		removeContacts(s, []string{c.ID})
	}
	addContacts(s, c.Parent, c)
}

// ReplaceFolderContacts sets the whole bucket of folder.
func ReplaceFolderContacts(s State, folder string, contacts []model.Contact) State {
	out := s.clone()
	out.Contacts[folder] = append([]model.Contact{}, contacts...)
	return out
}

// replaceFolder swaps the folder with the given id, keeping its position.
func replaceFolder(s *State, id string, f model.ContactsFolder) bool {
	for i := range s.Folders {
		if s.Folders[i].ID == id {
			s.Folders[i] = f
			return true
		}
	}
	return false
}

// removeFolders drops folders, their buckets and their fetch status.
func removeFolders(s *State, ids []string) {
	set := idSet(ids)
	kept := make([]model.ContactsFolder, 0, len(s.Folders))
	for _, f := range s.Folders {
		if !set[f.ID] {
			kept = append(kept, f)
		}
	}
	s.Folders = kept
	for id := range set {
		delete(s.Contacts, id)
		delete(s.Status, id)
	}
}

// rebasePaths rewrites the path of folder id and of everything below it
// after a rename or a move.
func rebasePaths(s *State, id string) {
	byID := make(map[string]int, len(s.Folders))
	for i, f := range s.Folders {
		byID[f.ID] = i
	}
	for _, sub := range s.Subfolders(id) {
		i, ok := byID[sub]
		if !ok {
			continue
		}
		f := s.Folders[i]
		var parentPath string
		switch p, ok := byID[f.Parent]; {
		case ok:
			parentPath = s.Folders[p].Path
		case model.IsTrash(f.Parent):
			parentPath = "/Trash"
		case f.Path != "":
			parentPath = strings.TrimSuffix(path.Dir(f.Path), "/")
		}
		s.Folders[i].Path = parentPath + "/" + f.Label
	}
}
