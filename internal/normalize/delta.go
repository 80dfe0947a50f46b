package normalize

import (
	"github.com/nhle/contacts/internal/soap"
)

// Delta is a change notification in model terms. Contact groups are already
// dropped; folder relevance is left to the cache, which also keeps folders
// it already knows.
type Delta struct {
	Seq              int
	CreatedContacts  []ContactPatch
	ModifiedContacts []ContactPatch
	CreatedFolders   []FolderPatch
	ModifiedFolders  []FolderPatch
	Deleted          []string
}

// DeltaFromWire converts a notification block.
func DeltaFromWire(n soap.Notification, opts Options) Delta {
	d := Delta{Seq: n.Seq}
	if n.Created != nil {
		d.CreatedContacts = contactPatches(n.Created.Contacts, opts)
		d.CreatedFolders = folderPatches(n.Created)
	}
	if n.Modified != nil {
		d.ModifiedContacts = contactPatches(n.Modified.Contacts, opts)
		d.ModifiedFolders = folderPatches(n.Modified)
	}
	if n.Deleted != nil {
		d.Deleted = SplitTags(n.Deleted.IDs)
	}
	return d
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.CreatedContacts) == 0 && len(d.ModifiedContacts) == 0 &&
		len(d.CreatedFolders) == 0 && len(d.ModifiedFolders) == 0 &&
		len(d.Deleted) == 0
}

func contactPatches(recs []soap.ContactRecord, opts Options) []ContactPatch {
	var out []ContactPatch
	for _, rec := range recs {
		p := PatchFromWire(rec, opts)
		if p.ID == "" || p.Group {
			continue
		}
		out = append(out, p)
	}
	return out
}

func folderPatches(c *soap.Changes) []FolderPatch {
	var out []FolderPatch
	for _, rec := range c.Folders {
		out = append(out, FolderPatchFromWire(rec))
	}
	for _, rec := range c.Links {
		out = append(out, FolderPatchFromWire(rec))
	}
	return out
}
