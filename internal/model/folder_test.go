package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSystemFolder(t *testing.T) {
	assert.True(t, IsSystemFolder("1"))
	assert.True(t, IsSystemFolder("7"))
	assert.True(t, IsSystemFolder("255"))
	assert.False(t, IsSystemFolder("256"))
	assert.False(t, IsSystemFolder("local-1"))
}

func TestInTrash(t *testing.T) {
	assert.True(t, ContactsFolder{ID: "3"}.InTrash())
	assert.True(t, ContactsFolder{ID: "300", Parent: "3"}.InTrash())
	assert.True(t, ContactsFolder{ID: "301", Parent: "300", Path: "/Trash/Old/Deep"}.InTrash())
	assert.False(t, ContactsFolder{ID: "302", Parent: "1", Path: "/Trashcan"}.InTrash())
	assert.False(t, ContactsFolder{ID: "7", Parent: "1", Path: "/Contacts"}.InTrash())
}

func TestIsContactsFolder(t *testing.T) {
	assert.True(t, IsContactsFolder(ViewContact, "300"))
	assert.True(t, IsContactsFolder("", FolderTrash))
	assert.False(t, IsContactsFolder("message", "2"))
}
