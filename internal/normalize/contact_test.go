package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/soap"
)

func phoneID(typ string, i int) model.FieldID {
	return model.FieldID{Kind: model.KindPhone, Type: typ, Index: i}
}

func emailID(i int) model.FieldID {
	return model.FieldID{Kind: model.KindEmail, Index: i}
}

func attrNames(attrs []soap.Attr) []string {
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.Name)
	}
	return names
}

func ada() model.Contact {
	return model.Contact{
		ID:        "257",
		Parent:    model.FolderContacts,
		Tags:      []string{},
		FirstName: "Ada",
		LastName:  "Lovelace",
		Company:   "Analytical Engines",
		Email: map[model.FieldID]model.Email{
			emailID(1): {Mail: "ada@example.com"},
			emailID(2): {Mail: "countess@example.com"},
		},
		Phone: map[model.FieldID]model.Phone{
			phoneID(model.TypeMobile, 1): {Number: "555-0101", Type: model.TypeMobile},
			phoneID(model.TypeHome, 1):   {Number: "555-0100", Type: model.TypeHome},
		},
		Address: map[model.FieldID]model.Address{
			{Kind: model.KindAddress, Type: model.TypeHome, Index: 1}: {
				Street: "12 St James's Square", City: "London", Country: "UK", Type: model.TypeHome,
			},
			{Kind: model.KindAddress, Type: model.TypeWork, Index: 2}: {
				City: "Paris", Type: model.TypeWork,
			},
		},
		URL: map[model.FieldID]model.URL{
			{Kind: model.KindURL, Type: model.TypeHome, Index: 1}: {URL: "https://ada.example.com", Type: model.TypeHome},
		},
	}
}

func TestContactToWireOrder(t *testing.T) {
	attrs := ContactToWire(ada())

	assert.Equal(t, []string{
		"firstName", "lastName", "company",
		"email", "email2",
		"homePhone", "mobilePhone",
		"homeStreet", "homeCity", "homeCountry",
		"workCity2",
		"homeURL",
	}, attrNames(attrs))
	assert.Equal(t, soap.Attr{Name: "homeStreet", Content: "12 St James's Square"}, attrs[7])
	assert.Equal(t, soap.Attr{Name: "workCity2", Content: "Paris"}, attrs[10])
}

func TestContactToWireSkipsEmptyValues(t *testing.T) {
	c := model.Contact{
		FirstName: "Ada",
		Email:     map[model.FieldID]model.Email{emailID(1): {}},
		Address: map[model.FieldID]model.Address{
			{Kind: model.KindAddress, Type: model.TypeHome, Index: 1}: {Type: model.TypeHome},
		},
	}
	assert.Equal(t, []soap.Attr{{Name: "firstName", Content: "Ada"}}, ContactToWire(c))
}

func TestModifyAttrsClearsDroppedFields(t *testing.T) {
	prev := ada()
	prev.Notes = "mathematician"

	next := prev.Clone()
	next.Notes = ""
	delete(next.Email, emailID(2))
	next.JobTitle = "Countess"

	attrs := ModifyAttrs(prev, next)
	n := len(attrs)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, soap.Attr{Name: "notes"}, attrs[n-2])
	assert.Equal(t, soap.Attr{Name: "email2"}, attrs[n-1])
	assert.Contains(t, attrs, soap.Attr{Name: "jobTitle", Content: "Countess"})
	assert.Contains(t, attrs, soap.Attr{Name: "email", Content: "ada@example.com"})
}

func TestAttrsDiffer(t *testing.T) {
	c := ada()
	assert.False(t, AttrsDiffer(c, c.Clone()))

	moved := c.Clone()
	moved.Parent = model.FolderTrash
	moved.Tags = []string{"5"}
	assert.False(t, AttrsDiffer(c, moved))

	edited := c.Clone()
	edited.Phone[phoneID(model.TypeHome, 1)] = model.Phone{Number: "555-0199", Type: model.TypeHome}
	assert.True(t, AttrsDiffer(c, edited))

	shorter := c.Clone()
	delete(shorter.URL, model.FieldID{Kind: model.KindURL, Type: model.TypeHome, Index: 1})
	assert.True(t, AttrsDiffer(c, shorter))
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"5", "6"}, SplitTags(" 5, ,6"))
	assert.Nil(t, SplitTags(""))
}

func TestImageURL(t *testing.T) {
	assert.Equal(t,
		"https://mail.example.com/service/home/~/?auth=co&id=257&part=1&max_width=32&max_height=32",
		ImageURL("https://mail.example.com/", "257", "1"),
	)
}

func TestContactFromWire(t *testing.T) {
	rec := soap.ContactRecord{
		ID:        "257",
		Parent:    soap.Ptr("7"),
		Tags:      soap.Ptr("5,6"),
		FileAsStr: soap.Ptr("Lovelace, Ada"),
		Attrs: &soap.Attrs{
			Values: map[string]string{
				"firstName":  "Ada",
				"lastName":   "Lovelace",
				"email":      "ada@example.com",
				"email2":     "countess@example.com",
				"homePhone":  "1",
				"homePhone2": "2",
				"homePhone3": "3",
				"otherPhone": "8",
				"carPhone":   "9",
				"workStreet": "Somerset House",
				"workCity":   "London",
				"homeURL":    "https://ada.example.com",
				"fileAs":     "3",
			},
			Image: &soap.ImagePart{Part: "1", ContentType: "image/png"},
		},
	}

	c, ok := ContactFromWire(rec, Options{ImageOrigin: "https://mail.example.com"})
	require.True(t, ok)

	assert.Equal(t, "257", c.ID)
	assert.Equal(t, "7", c.Parent)
	assert.Equal(t, []string{"5", "6"}, c.Tags)
	assert.Equal(t, "Ada", c.FirstName)
	assert.Equal(t, "Lovelace, Ada", c.FileAsStr)
	assert.Equal(t, ImageURL("https://mail.example.com", "257", "1"), c.Image)

	assert.Equal(t, map[model.FieldID]model.Email{
		emailID(1): {Mail: "ada@example.com"},
		emailID(2): {Mail: "countess@example.com"},
	}, c.Email)
	assert.Equal(t, map[model.FieldID]model.Phone{
		phoneID(model.TypeHome, 1):  {Number: "1", Type: model.TypeHome},
		phoneID(model.TypeHome, 2):  {Number: "2", Type: model.TypeHome},
		phoneID(model.TypeHome, 3):  {Number: "3", Type: model.TypeHome},
		phoneID(model.TypeOther, 1): {Number: "8", Type: model.TypeOther},
		phoneID(model.TypeOther, 2): {Number: "9", Type: model.TypeOther},
	}, c.Phone)
	assert.Equal(t, map[model.FieldID]model.Address{
		{Kind: model.KindAddress, Type: model.TypeWork, Index: 1}: {
			Street: "Somerset House", City: "London", Type: model.TypeWork,
		},
	}, c.Address)
	assert.Len(t, c.URL, 1)
}

func TestContactFromWireRejectsGroupsAndMissingIDs(t *testing.T) {
	group := soap.ContactRecord{
		ID:     "400",
		Parent: soap.Ptr("7"),
		Attrs:  &soap.Attrs{Values: map[string]string{"type": "group", "nickname": "Team"}},
	}
	_, ok := ContactFromWire(group, Options{})
	assert.False(t, ok)

	_, ok = ContactFromWire(soap.ContactRecord{Parent: soap.Ptr("7")}, Options{})
	assert.False(t, ok)

	plain := soap.ContactRecord{ID: "258", Parent: soap.Ptr("7")}
	got := ContactsFromWire([]soap.ContactRecord{group, plain}, Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "258", got[0].ID)
	assert.Equal(t, []string{}, got[0].Tags)
	assert.NotNil(t, got[0].Email)
	assert.NotNil(t, got[0].Address)
}

func TestContactRoundTrip(t *testing.T) {
	c := ada()
	values := map[string]string{}
	for _, a := range ContactToWire(c) {
		values[a.Name] = a.Content
	}

	back, ok := ContactFromWire(soap.ContactRecord{
		ID:     c.ID,
		Parent: soap.Ptr(c.Parent),
		Tags:   soap.Ptr(""),
		Attrs:  &soap.Attrs{Values: values},
	}, Options{})
	require.True(t, ok)
	assert.Equal(t, c, back)
}

func TestPatchApplyKeepsAbsentFields(t *testing.T) {
	c := ada()
	c.Image = "https://mail.example.com/img"

	moved := PatchFromWire(soap.ContactRecord{ID: "257", Parent: soap.Ptr("3")}, Options{})
	got := moved.Apply(c)
	assert.Equal(t, "3", got.Parent)
	assert.Equal(t, c.Email, got.Email)
	assert.Equal(t, c.Image, got.Image)
	assert.Equal(t, "7", c.Parent, "input is not mutated")

	renamed := PatchFromWire(soap.ContactRecord{
		ID: "257",
		Attrs: &soap.Attrs{Values: map[string]string{
			"firstName": "Augusta",
			"email":     "augusta@example.com",
			"image":     "",
		}},
	}, Options{})
	got = renamed.Apply(c)
	assert.Equal(t, "Augusta", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName)
	assert.Equal(t, map[model.FieldID]model.Email{emailID(1): {Mail: "augusta@example.com"}}, got.Email)
	assert.Equal(t, c.Phone, got.Phone)
	assert.Equal(t, c.Address, got.Address)
	assert.Equal(t, c.URL, got.URL)
	assert.Empty(t, got.Image)
}

func TestPatchWithoutMultiValueKeysKeepsThem(t *testing.T) {
	p := PatchFromWire(soap.ContactRecord{
		ID:    "257",
		Attrs: &soap.Attrs{Values: map[string]string{"firstName": "Augusta"}},
	}, Options{})
	assert.Nil(t, p.Email)
	assert.Nil(t, p.Phone)
	assert.Nil(t, p.Address)
	assert.Nil(t, p.URL)

	c := ada()
	got := p.Apply(c)
	assert.Equal(t, "Augusta", got.FirstName)
	assert.Equal(t, "Lovelace", got.LastName)
	assert.Equal(t, c.Email, got.Email)
	assert.Equal(t, c.Phone, got.Phone)
	assert.Equal(t, c.Address, got.Address)
	assert.Equal(t, c.URL, got.URL)
}

func TestPatchContactNeedsParent(t *testing.T) {
	p := PatchFromWire(soap.ContactRecord{ID: "257", Tags: soap.Ptr("5")}, Options{})
	c, ok := p.Contact()
	assert.False(t, ok)
	assert.Equal(t, []string{"5"}, c.Tags)

	p.Parent = soap.Ptr("7")
	_, ok = p.Contact()
	assert.True(t, ok)
}
