package normalize

import (
	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/soap"
)

// FolderPatch is a partial folder read from a change notification.
// Nil fields were not carried by the notification.
type FolderPatch struct {
	ID         string
	Parent     *string
	Label      *string
	Path       *string
	View       *string
	ItemsCount *int
	Color      *int
	Owner      *string
	Perm       *string
	SharedWith *[]model.Grant
	Broken     *bool
}

// FolderPatchFromWire reads only the fields present in rec.
func FolderPatchFromWire(rec soap.FolderRecord) FolderPatch {
	p := FolderPatch{
		ID:         rec.ID,
		Parent:     rec.Parent,
		Label:      rec.Name,
		Path:       rec.AbsFolderPath,
		View:       rec.View,
		ItemsCount: rec.Count,
		Color:      rec.Color,
		Owner:      rec.Owner,
		Perm:       rec.Perm,
		Broken:     rec.Broken,
	}
	if rec.ACL != nil {
		grants := make([]model.Grant, 0, len(rec.ACL.Grants))
		for _, g := range rec.ACL.Grants {
			grants = append(grants, model.Grant{
				GranteeID:   g.GranteeID,
				GranteeType: g.GranteeType,
				GranteeName: g.GranteeName,
				Perm:        g.Perm,
			})
		}
		p.SharedWith = &grants
	}
	return p
}

// Relevant reports whether the folder belongs in the contacts cache, as far
// as the patch tells.
func (p FolderPatch) Relevant() bool {
	view := ""
	if p.View != nil {
		view = *p.View
	}
	return model.IsContactsFolder(view, p.ID)
}

// Apply shallow-merges the patch into f: present fields replace, absent
// fields are kept.
func (p FolderPatch) Apply(f model.ContactsFolder) model.ContactsFolder {
	out := f
	if p.ID != "" {
		out.ID = p.ID
	}
	if p.Parent != nil {
		out.Parent = *p.Parent
	}
	if p.Label != nil {
		out.Label = *p.Label
	}
	if p.Path != nil {
		out.Path = *p.Path
	}
	if p.View != nil {
		out.View = *p.View
	}
	if p.ItemsCount != nil {
		out.ItemsCount = *p.ItemsCount
	}
	if p.Color != nil {
		out.Color = *p.Color
	}
	if p.Owner != nil {
		out.Owner = *p.Owner
		out.IsShared = *p.Owner != ""
	}
	if p.Perm != nil {
		out.Perm = *p.Perm
	}
	if p.SharedWith != nil {
		out.SharedWith = append([]model.Grant(nil), (*p.SharedWith)...)
	}
	if p.Broken != nil {
		out.Broken = *p.Broken
	}
	out.Deletable = !model.IsSystemFolder(out.ID)
	out.Local = false
	return out
}

// Folder builds a fresh folder from the patch.
func (p FolderPatch) Folder() model.ContactsFolder {
	return p.Apply(model.ContactsFolder{})
}

// FolderFromWire renames the wire fields of a single folder record.
func FolderFromWire(rec soap.FolderRecord) model.ContactsFolder {
	return FolderPatchFromWire(rec).Folder()
}

// FoldersFromWire flattens a folder tree depth-first, keeping contact
// folders, mounted address books and the trash. Children of a skipped
// folder are still visited.
func FoldersFromWire(tree []soap.FolderRecord) []model.ContactsFolder {
	var out []model.ContactsFolder
	var walk func(recs []soap.FolderRecord)
	walk = func(recs []soap.FolderRecord) {
		for _, rec := range recs {
			if FolderPatchFromWire(rec).Relevant() {
				out = append(out, FolderFromWire(rec))
			}
			walk(rec.Folders)
			walk(rec.Links)
		}
	}
	walk(tree)
	return out
}
