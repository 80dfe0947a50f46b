package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/soap"
)

func TestFoldersFromWire(t *testing.T) {
	tree := []soap.FolderRecord{{
		ID:   "1",
		Name: soap.Ptr("USER_ROOT"),
		Folders: []soap.FolderRecord{
			{ID: "7", Name: soap.Ptr("Contacts"), AbsFolderPath: soap.Ptr("/Contacts"),
				Parent: soap.Ptr("1"), View: soap.Ptr("contact"), Count: soap.Ptr(4)},
			{ID: "3", Name: soap.Ptr("Trash"), AbsFolderPath: soap.Ptr("/Trash"),
				Parent: soap.Ptr("1"), View: soap.Ptr("message")},
			{ID: "2", Name: soap.Ptr("Inbox"), Parent: soap.Ptr("1"), View: soap.Ptr("message"),
				Folders: []soap.FolderRecord{
					{ID: "400", Name: soap.Ptr("Suppliers"), Parent: soap.Ptr("2"), View: soap.Ptr("contact"),
						ACL: &soap.ACL{Grants: []soap.GrantRecord{{GranteeID: "u-bob", GranteeType: "usr", Perm: "r"}}}},
				}},
		},
		Links: []soap.FolderRecord{
			{ID: "500", Name: soap.Ptr("Bob's contacts"), Parent: soap.Ptr("1"), View: soap.Ptr("contact"),
				Owner: soap.Ptr("bob@example.com"), OwnerID: "u-bob", RemoteID: "7", Perm: soap.Ptr("r")},
		},
	}}

	folders := FoldersFromWire(tree)
	var ids []string
	for _, f := range folders {
		ids = append(ids, f.ID)
	}
	require.Equal(t, []string{"7", "3", "400", "500"}, ids)

	assert.Equal(t, model.ContactsFolder{
		ID:         "7",
		Parent:     "1",
		Label:      "Contacts",
		Path:       "/Contacts",
		ItemsCount: 4,
		View:       "contact",
	}, folders[0])
	assert.True(t, folders[1].InTrash())
	assert.True(t, folders[2].Deletable)
	assert.Equal(t, []model.Grant{{GranteeID: "u-bob", GranteeType: "usr", Perm: "r"}}, folders[2].SharedWith)
	assert.True(t, folders[3].IsShared)
	assert.Equal(t, "bob@example.com", folders[3].Owner)
	assert.Equal(t, "r", folders[3].Perm)
}

func TestFolderPatchApply(t *testing.T) {
	f := model.ContactsFolder{
		ID:         "300",
		Parent:     "7",
		Label:      "Team",
		Path:       "/Contacts/Team",
		ItemsCount: 4,
		View:       "contact",
		Deletable:  true,
		Local:      true,
	}

	p := FolderPatchFromWire(soap.FolderRecord{ID: "300", Count: soap.Ptr(5), Color: soap.Ptr(3)})
	got := p.Apply(f)
	assert.Equal(t, 5, got.ItemsCount)
	assert.Equal(t, 3, got.Color)
	assert.Equal(t, "Team", got.Label)
	assert.Equal(t, "/Contacts/Team", got.Path)
	assert.False(t, got.Local)
	assert.Equal(t, 4, f.ItemsCount)

	unshared := FolderPatchFromWire(soap.FolderRecord{ID: "300", ACL: &soap.ACL{}}).Apply(model.ContactsFolder{
		ID:         "300",
		SharedWith: []model.Grant{{GranteeID: "u-bob"}},
	})
	assert.Empty(t, unshared.SharedWith)

	owned := FolderPatchFromWire(soap.FolderRecord{ID: "500", Owner: soap.Ptr("")}).Apply(model.ContactsFolder{
		ID:       "500",
		Owner:    "bob@example.com",
		IsShared: true,
	})
	assert.False(t, owned.IsShared)
}

func TestFolderPatchRelevant(t *testing.T) {
	assert.True(t, FolderPatch{ID: "3"}.Relevant())
	assert.False(t, FolderPatch{ID: "300"}.Relevant())
	assert.True(t, FolderPatch{ID: "300", View: soap.Ptr("contact")}.Relevant())
	assert.False(t, FolderPatch{ID: "2", View: soap.Ptr("message")}.Relevant())
}
