package cache

import (
	"github.com/nhle/contacts/internal/normalize"
)

// reduceSynced merges a change notification. Blocks whose sequence number
// is not above the last applied one are dropped, which makes redelivery
// harmless. Deletions are applied last so an item created and deleted in
// the same block ends up gone.
func reduceSynced(s State, d normalize.Delta) State {
	if d.Seq <= s.LastSeq {
		return s
	}
	out := s.clone()
	out.LastSeq = d.Seq

	for _, p := range d.CreatedContacts {
		mergeContact(&out, p)
	}
	for _, p := range d.ModifiedContacts {
		mergeContact(&out, p)
	}
	for _, p := range d.CreatedFolders {
		mergeFolder(&out, p)
	}
	for _, p := range d.ModifiedFolders {
		mergeFolder(&out, p)
	}

	if len(d.Deleted) > 0 {
		removeContacts(&out, d.Deleted)
		var folders []string
		for _, id := range d.Deleted {
			if _, ok := out.Folder(id); ok {
				folders = append(folders, id)
			}
		}
		if len(folders) > 0 {
			removeFolders(&out, folders)
		}
	}
	return out
}

// mergeContact field-merges a known contact, moving it when its parent
// changed, or inserts a new one into its parent's bucket.
func mergeContact(s *State, p normalize.ContactPatch) {
	if existing, folder, ok := s.FindContact(p.ID); ok {
		merged := p.Apply(existing)
		if merged.Parent == folder {
			s.Contacts[folder] = withContact(s.Contacts[folder], merged)
			return
		}
		removeContacts(s, []string{p.ID})
		addContacts(s, merged.Parent, merged)
		return
	}
	c, ok := p.Contact()
	if !ok {
		return
	}
	addContacts(s, c.Parent, c)
}

// mergeFolder shallow-merges a known folder. Unknown folders are added
// when they hold contacts.
func mergeFolder(s *State, p normalize.FolderPatch) {
	if existing, ok := s.Folder(p.ID); ok {
		replaceFolder(s, p.ID, p.Apply(existing))
		if p.Path == nil && (p.Label != nil || p.Parent != nil) {
			rebasePaths(s, p.ID)
		}
		return
	}
	if !p.Relevant() {
		return
	}
	s.Folders = append(s.Folders, p.Folder())
}
