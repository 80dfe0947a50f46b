package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/contacts/internal/model"
)

func folder(id, parent, label, path string) model.ContactsFolder {
	return model.ContactsFolder{
		ID:        id,
		Parent:    parent,
		Label:     label,
		Path:      path,
		View:      model.ViewContact,
		Deletable: !model.IsSystemFolder(id),
	}
}

func folderTree() []model.ContactsFolder {
	return []model.ContactsFolder{
		folder("7", "1", "Contacts", "/Contacts"),
		folder("3", "1", "Trash", "/Trash"),
		folder("300", "7", "Friends", "/Contacts/Friends"),
		folder("301", "300", "Close", "/Contacts/Friends/Close"),
	}
}

func paths(s State) map[string]string {
	out := make(map[string]string, len(s.Folders))
	for _, f := range s.Folders {
		out[f.ID] = f.Path
	}
	return out
}

func TestCreateFolderPlaceholder(t *testing.T) {
	s := stateWith(nil, folderTree()...)
	s = Reduce(s, Pending{
		RequestID: "r",
		Op:        CreateFolder{LocalID: "tmp-1", Name: "Work", Parent: "7"},
	})

	f, ok := s.Folder("tmp-1")
	require.True(t, ok)
	assert.True(t, f.Local)
	assert.Equal(t, "/Contacts/Work", f.Path)

	// a refetch keeps the placeholder
	s = Reduce(s, FoldersFetched{Folders: folderTree()})
	_, ok = s.Folder("tmp-1")
	assert.True(t, ok)

	created := folder("400", "7", "Work", "/Contacts/Work")
	s = Reduce(s, Fulfilled{RequestID: "r", Result: Result{Folder: &created}})

	_, ok = s.Folder("tmp-1")
	assert.False(t, ok)
	f, ok = s.Folder("400")
	require.True(t, ok)
	assert.False(t, f.Local)
	assert.Len(t, s.Folders, 5)
}

func TestRenameFolderRebasesDescendants(t *testing.T) {
	s := stateWith(nil, folderTree()...)
	s = Reduce(s, Pending{
		RequestID: "r",
		Op:        FolderAction{Op: FolderRename, ID: "300", Name: "Pals"},
	})

	p := paths(s)
	assert.Equal(t, "/Contacts/Pals", p["300"])
	assert.Equal(t, "/Contacts/Pals/Close", p["301"])

	s = Reduce(s, Rejected{RequestID: "r", Err: errors.New("exists")})
	assert.Equal(t, folderTree(), s.Folders)
}

func TestMoveFolderToTrash(t *testing.T) {
	s := stateWith(nil, folderTree()...)
	s = Reduce(s, Pending{
		RequestID: "r",
		Op:        FolderAction{Op: FolderMove, ID: "300", Parent: model.FolderTrash},
	})

	p := paths(s)
	assert.Equal(t, "/Trash/Friends", p["300"])
	assert.Equal(t, "/Trash/Friends/Close", p["301"])
	f, _ := s.Folder("301")
	assert.True(t, f.InTrash())
}

func TestDeleteFolderDropsSubtreeAndBuckets(t *testing.T) {
	before := stateWith(map[string][]model.Contact{
		"300": {contact("1", "300", "One")},
		"301": {contact("2", "301", "Two")},
		"7":   {contact("3", "7", "Three")},
	}, folderTree()...)
	before.Status["300"] = true

	s := Reduce(before, Pending{RequestID: "r", Op: FolderAction{Op: FolderDelete, ID: "300"}})

	_, ok := s.Folder("300")
	assert.False(t, ok)
	_, ok = s.Folder("301")
	assert.False(t, ok)
	assert.NotContains(t, s.Contacts, "300")
	assert.NotContains(t, s.Contacts, "301")
	assert.NotContains(t, s.Status, "300")
	assert.Equal(t, []string{"3"}, ids(s.Contacts["7"]))

	s = Reduce(s, Rejected{RequestID: "r"})
	assert.Equal(t, before, s)
}

func TestEmptyFolderMovesContactsToTrash(t *testing.T) {
	s := stateWith(map[string][]model.Contact{
		"300": {contact("1", "300", "One"), contact("2", "300", "Two")},
		"3":   {contact("9", "3", "Nine")},
	}, folderTree()...)
	s = Reduce(s, Pending{RequestID: "r", Op: FolderAction{Op: FolderEmpty, ID: "300"}})

	assert.Empty(t, s.Contacts["300"])
	assert.ElementsMatch(t, []string{"9", "1", "2"}, ids(s.Contacts["3"]))
	for _, c := range s.Contacts["3"] {
		assert.Equal(t, model.FolderTrash, c.Parent)
	}
}

func TestEmptyTrashDropsEverything(t *testing.T) {
	tree := append(folderTree(), folder("500", "3", "Old", "/Trash/Old"))
	s := stateWith(map[string][]model.Contact{
		"3":   {contact("9", "3", "Nine")},
		"500": {contact("8", "500", "Eight")},
	}, tree...)
	s = Reduce(s, Pending{RequestID: "r", Op: FolderAction{Op: FolderEmpty, ID: "3"}})

	assert.Empty(t, s.Contacts["3"])
	assert.NotContains(t, s.Contacts, "500")
	_, ok := s.Folder("500")
	assert.False(t, ok)
	_, ok = s.Folder("3")
	assert.True(t, ok)
}

func TestRevokeGrant(t *testing.T) {
	shared := folder("300", "7", "Friends", "/Contacts/Friends")
	shared.SharedWith = []model.Grant{
		{GranteeID: "u1", GranteeType: "usr", Perm: "r"},
		{GranteeID: "u2", GranteeType: "usr", Perm: "rw"},
	}
	s := stateWith(nil, shared)
	s = Reduce(s, Pending{RequestID: "r", Op: FolderAction{Op: FolderRevoke, ID: "300", GranteeID: "u1"}})

	f, _ := s.Folder("300")
	require.Len(t, f.SharedWith, 1)
	assert.Equal(t, "u2", f.SharedWith[0].GranteeID)
}

func TestUpdateFolderColor(t *testing.T) {
	s := stateWith(nil, folderTree()...)
	color := 4
	s = Reduce(s, Pending{RequestID: "r", Op: FolderAction{Op: FolderUpdate, ID: "300", Color: &color}})

	f, _ := s.Folder("300")
	assert.Equal(t, 4, f.Color)
	assert.Equal(t, "/Contacts/Friends", f.Path)
}
