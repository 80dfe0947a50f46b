package model

import "strconv"

// Well-known folder ids of a mailbox.
const (
	FolderRoot           = "1"
	FolderTrash          = "3"
	FolderContacts       = "7"
	FolderEmailContacts  = "13"
	firstUserFolderIDNum = 256
)

// ViewContact is the folder view of address books.
const ViewContact = "contact"

// Grant is a single entry of a folder's sharing ACL.
type Grant struct {
	GranteeID   string `json:"zid,omitempty"`
	GranteeType string `json:"gt,omitempty"`
	GranteeName string `json:"d,omitempty"`
	Perm        string `json:"perm,omitempty"`
}

// ContactsFolder is an address book, a mounted share, or the trash.
type ContactsFolder struct {
	ID         string  `json:"id"`
	Parent     string  `json:"parent"`
	Label      string  `json:"label"`
	Path       string  `json:"path"`
	ItemsCount int     `json:"itemsCount"`
	Color      int     `json:"color"`
	Deletable  bool    `json:"deletable"`
	View       string  `json:"view"`
	IsShared   bool    `json:"isShared"`
	Owner      string  `json:"owner,omitempty"`
	Perm       string  `json:"perm,omitempty"`
	SharedWith []Grant `json:"sharedWith,omitempty"`
	Broken     bool    `json:"broken"`

	// Local marks a placeholder seeded before the server confirmed a create.
	Local bool `json:"local,omitempty"`
}

// IsTrash reports whether id is the trash folder.
func IsTrash(id string) bool {
	return id == FolderTrash
}

// IsSystemFolder reports whether id belongs to a folder created by the
// server itself. System folders cannot be deleted, renamed or moved.
func IsSystemFolder(id string) bool {
	n, err := strconv.Atoi(id)
	if err != nil {
		return false
	}
	return n < firstUserFolderIDNum
}

// InTrash reports whether the folder is the trash or lives below it.
func (f ContactsFolder) InTrash() bool {
	return IsTrash(f.ID) || IsTrash(f.Parent) || hasPathPrefix(f.Path, "/Trash")
}

func hasPathPrefix(path, prefix string) bool {
	if len(path) < len(prefix) || path[:len(prefix)] != prefix {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// IsContactsFolder reports whether a folder with the given view and id is
// kept in the contacts cache.
func IsContactsFolder(view, id string) bool {
	return view == ViewContact || IsTrash(id)
}
