package model

// ScalarField is the wire attribute name of a single-valued contact field.
type ScalarField string

const (
	FieldFirstName  ScalarField = "firstName"
	FieldLastName   ScalarField = "lastName"
	FieldMiddleName ScalarField = "middleName"
	FieldNickName   ScalarField = "nickname"
	FieldNamePrefix ScalarField = "namePrefix"
	FieldNameSuffix ScalarField = "nameSuffix"
	FieldJobTitle   ScalarField = "jobTitle"
	FieldDepartment ScalarField = "department"
	FieldCompany    ScalarField = "company"
	FieldNotes      ScalarField = "notes"
	FieldFileAsStr  ScalarField = "fileAsStr"
)

// ScalarFields lists the scalar attributes in encoding order.
// The image is not part of it: it is an attachment, not a text attribute.
var ScalarFields = []ScalarField{
	FieldFirstName,
	FieldLastName,
	FieldMiddleName,
	FieldNickName,
	FieldNamePrefix,
	FieldNameSuffix,
	FieldJobTitle,
	FieldDepartment,
	FieldCompany,
	FieldNotes,
	FieldFileAsStr,
}

// Email is a single entry of the email map. Emails carry no type.
type Email struct {
	Mail string `json:"mail"`
}

// Phone is a single entry of the phone map.
type Phone struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

// URL is a single entry of the URL map.
type URL struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Address is a single entry of the address map.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	Type       string `json:"type"`
}

// IsEmpty reports whether no sub-field is populated.
func (a Address) IsEmpty() bool {
	return a.Street == "" && a.City == "" && a.PostalCode == "" &&
		a.State == "" && a.Country == ""
}

// Contact is the structured, in-memory representation of an address-book
// entry.
type Contact struct {
	// ID is assigned by the server. It is empty for a local draft.
	ID string `json:"id,omitempty"`

	// LocalID identifies drafts and optimistic placeholders on the client.
	// It is never sent to the server.
	LocalID string `json:"localId,omitempty"`

	// Parent is the id of the owning folder.
	Parent string `json:"parent"`

	// Tags holds tag ids. Order is not significant.
	Tags []string `json:"tags,omitempty"`

	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	MiddleName string `json:"middleName,omitempty"`
	NickName   string `json:"nickName,omitempty"`
	NamePrefix string `json:"namePrefix,omitempty"`
	NameSuffix string `json:"nameSuffix,omitempty"`
	JobTitle   string `json:"jobTitle,omitempty"`
	Department string `json:"department,omitempty"`
	Company    string `json:"company,omitempty"`
	Notes      string `json:"notes,omitempty"`
	Image      string `json:"image,omitempty"`
	FileAsStr  string `json:"fileAsStr,omitempty"`

	Email   map[FieldID]Email   `json:"email,omitempty"`
	Phone   map[FieldID]Phone   `json:"phone,omitempty"`
	Address map[FieldID]Address `json:"address,omitempty"`
	URL     map[FieldID]URL     `json:"URL,omitempty"`
}

// Scalar returns the value of a scalar field.
func (c Contact) Scalar(f ScalarField) string {
	switch f {
	case FieldFirstName:
		return c.FirstName
	case FieldLastName:
		return c.LastName
	case FieldMiddleName:
		return c.MiddleName
	case FieldNickName:
		return c.NickName
	case FieldNamePrefix:
		return c.NamePrefix
	case FieldNameSuffix:
		return c.NameSuffix
	case FieldJobTitle:
		return c.JobTitle
	case FieldDepartment:
		return c.Department
	case FieldCompany:
		return c.Company
	case FieldNotes:
		return c.Notes
	case FieldFileAsStr:
		return c.FileAsStr
	}
	return ""
}

// SetScalar assigns a scalar field. Unknown fields are ignored.
func (c *Contact) SetScalar(f ScalarField, v string) {
	switch f {
	case FieldFirstName:
		c.FirstName = v
	case FieldLastName:
		c.LastName = v
	case FieldMiddleName:
		c.MiddleName = v
	case FieldNickName:
		c.NickName = v
	case FieldNamePrefix:
		c.NamePrefix = v
	case FieldNameSuffix:
		c.NameSuffix = v
	case FieldJobTitle:
		c.JobTitle = v
	case FieldDepartment:
		c.Department = v
	case FieldCompany:
		c.Company = v
	case FieldNotes:
		c.Notes = v
	case FieldFileAsStr:
		c.FileAsStr = v
	}
}

// IsScalarField reports whether name is a known scalar attribute.
func IsScalarField(name string) bool {
	for _, f := range ScalarFields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// HasTag reports whether the contact carries the given tag id.
func (c Contact) HasTag(id string) bool {
	for _, t := range c.Tags {
		if t == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no maps or slices with c.
func (c Contact) Clone() Contact {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	out.Email = cloneMap(c.Email)
	out.Phone = cloneMap(c.Phone)
	out.Address = cloneMap(c.Address)
	out.URL = cloneMap(c.URL)
	return out
}

func cloneMap[V any](m map[FieldID]V) map[FieldID]V {
	if m == nil {
		return nil
	}
	out := make(map[FieldID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AddPhone appends a phone of the given type under the next free id.
func (c *Contact) AddPhone(typ, number string) FieldID {
	if c.Phone == nil {
		c.Phone = make(map[FieldID]Phone)
	}
	id := NextFieldID(KindPhone, typ, SortedKeys(c.Phone))
	c.Phone[id] = Phone{Number: number, Type: typ}
	return id
}

// AddEmail appends an email under the next free id.
func (c *Contact) AddEmail(mail string) FieldID {
	if c.Email == nil {
		c.Email = make(map[FieldID]Email)
	}
	id := NextFieldID(KindEmail, "", SortedKeys(c.Email))
	c.Email[id] = Email{Mail: mail}
	return id
}

// AddAddress appends an address of the given type under the next free id.
func (c *Contact) AddAddress(a Address) FieldID {
	if c.Address == nil {
		c.Address = make(map[FieldID]Address)
	}
	id := NextFieldID(KindAddress, a.Type, SortedKeys(c.Address))
	c.Address[id] = a
	return id
}

// AddURL appends a URL of the given type under the next free id.
func (c *Contact) AddURL(typ, url string) FieldID {
	if c.URL == nil {
		c.URL = make(map[FieldID]URL)
	}
	id := NextFieldID(KindURL, typ, SortedKeys(c.URL))
	c.URL[id] = URL{URL: url, Type: typ}
	return id
}

// PrimaryEmail returns the first email in encoding order, if any.
func (c Contact) PrimaryEmail() string {
	keys := SortedKeys(c.Email)
	if len(keys) == 0 {
		return ""
	}
	return c.Email[keys[0]].Mail
}

// DisplayName returns the best human-readable label for the contact.
func (c Contact) DisplayName() string {
	switch {
	case c.FileAsStr != "":
		return c.FileAsStr
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	}
	return c.PrimaryEmail()
}
