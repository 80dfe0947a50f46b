// Package normalize converts between the flat attribute encoding used on
// the wire and the structured contact and folder model.
//
// Every function here is pure: malformed or unknown input degrades to
// omitted fields, never to an error.
package normalize

import (
	"fmt"
	"strings"

	"github.com/nhle/contacts/internal/model"
	"github.com/nhle/contacts/internal/soap"
)

// groupType is the value of the type attribute on contact groups.
const groupType = "group"

// Options carries the environment a wire record is read in.
type Options struct {
	// ImageOrigin prefixes thumbnail URLs (e.g., https://mail.example.com).
	ImageOrigin string
}

// ImageURL returns the thumbnail URL of a contact picture.
func ImageURL(origin, contactID, part string) string {
	return fmt.Sprintf(
		"%s/service/home/~/?auth=co&id=%s&part=%s&max_width=32&max_height=32",
		strings.TrimRight(origin, "/"), contactID, part,
	)
}

// ContactToWire flattens a contact into the attribute list sent on create
// and modify. Only populated values are emitted.
func ContactToWire(c model.Contact) []soap.Attr {
	pairs := encodeAttrs(c)
	out := make([]soap.Attr, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, soap.Attr{Name: p.name, Content: p.value})
	}
	return out
}

// ModifyAttrs returns the attributes to send when prev is edited into next:
// the full attribute set of next, plus an empty value for every attribute
// prev had and next dropped, which clears it on the server.
func ModifyAttrs(prev, next model.Contact) []soap.Attr {
	out := ContactToWire(next)
	present := make(map[string]bool, len(out))
	for _, a := range out {
		present[a.Name] = true
	}
	for _, p := range encodeAttrs(prev) {
		if !present[p.name] {
			out = append(out, soap.Attr{Name: p.name})
		}
	}
	return out
}

// AttrsDiffer reports whether next would send a different attribute set
// than prev. Editors use it to enable saving.
func AttrsDiffer(prev, next model.Contact) bool {
	a, b := encodeAttrs(prev), encodeAttrs(next)
	if len(a) != len(b) {
		return true
	}
	values := make(map[string]string, len(a))
	for _, p := range a {
		values[p.name] = p.value
	}
	for _, p := range b {
		v, ok := values[p.name]
		if !ok || v != p.value {
			return true
		}
	}
	return false
}

// SplitTags splits a comma-joined tag id list, discarding empty segments.
func SplitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// IsGroup reports whether the record is a contact group rather than a
// person.
func IsGroup(rec soap.ContactRecord) bool {
	return rec.Attrs != nil && rec.Attrs.Values["type"] == groupType
}

// ContactFromWire builds a contact from a full wire record. It returns false
// for contact groups and for records without an id.
func ContactFromWire(rec soap.ContactRecord, opts Options) (model.Contact, bool) {
	if rec.ID == "" || IsGroup(rec) {
		return model.Contact{}, false
	}
	c, _ := PatchFromWire(rec, opts).Contact()
	return c, true
}

// ContactsFromWire normalizes a search result, dropping groups and
// incomplete records.
func ContactsFromWire(recs []soap.ContactRecord, opts Options) []model.Contact {
	out := make([]model.Contact, 0, len(recs))
	for _, rec := range recs {
		if c, ok := ContactFromWire(rec, opts); ok {
			out = append(out, c)
		}
	}
	return out
}

// ContactPatch is a partial contact read from a change notification. Nil
// pointers and nil maps stand for fields the notification did not carry.
type ContactPatch struct {
	ID      string
	Parent  *string
	Tags    *[]string
	Image   *string
	Scalars map[model.ScalarField]string
	Email   map[model.FieldID]model.Email
	Phone   map[model.FieldID]model.Phone
	Address map[model.FieldID]model.Address
	URL     map[model.FieldID]model.URL
	Group   bool
}

// PatchFromWire reads only the fields present in rec.
func PatchFromWire(rec soap.ContactRecord, opts Options) ContactPatch {
	p := ContactPatch{
		ID:     rec.ID,
		Parent: rec.Parent,
		Group:  IsGroup(rec),
	}
	if rec.Tags != nil {
		tags := SplitTags(*rec.Tags)
		p.Tags = &tags
	}
	if rec.FileAsStr != nil {
		p.Scalars = map[model.ScalarField]string{model.FieldFileAsStr: *rec.FileAsStr}
	}
	if rec.Attrs == nil {
		return p
	}

	d := decodeAttrs(rec.Attrs.Values)
	for f, v := range d.scalars {
		if p.Scalars == nil {
			p.Scalars = make(map[model.ScalarField]string)
		}
		p.Scalars[f] = v
	}
	// Kinds without any key stay nil: absent, not cleared.
	p.Email = d.email
	p.Phone = d.phone
	p.Address = d.address
	p.URL = d.url

	if rec.Attrs.Image != nil {
		url := ImageURL(opts.ImageOrigin, rec.ID, rec.Attrs.Image.Part)
		p.Image = &url
	} else if v, ok := rec.Attrs.Values["image"]; ok && v == "" {
		empty := ""
		p.Image = &empty
	}
	return p
}

// Apply field-merges the patch into c. Absent fields keep their current
// value; present multi-value maps replace the current map.
func (p ContactPatch) Apply(c model.Contact) model.Contact {
	out := c.Clone()
	if p.ID != "" {
		out.ID = p.ID
	}
	if p.Parent != nil {
		out.Parent = *p.Parent
	}
	if p.Tags != nil {
		out.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Image != nil {
		out.Image = *p.Image
	}
	for f, v := range p.Scalars {
		out.SetScalar(f, v)
	}
	if p.Email != nil {
		out.Email = copyMap(p.Email)
	}
	if p.Phone != nil {
		out.Phone = copyMap(p.Phone)
	}
	if p.Address != nil {
		out.Address = copyMap(p.Address)
	}
	if p.URL != nil {
		out.URL = copyMap(p.URL)
	}
	return out
}

// Contact builds a fresh contact from the patch. It returns false when the
// patch lacks the id or the parent folder needed to place the contact.
func (p ContactPatch) Contact() (model.Contact, bool) {
	c := p.Apply(model.Contact{
		Email:   map[model.FieldID]model.Email{},
		Phone:   map[model.FieldID]model.Phone{},
		Address: map[model.FieldID]model.Address{},
		URL:     map[model.FieldID]model.URL{},
	})
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, p.ID != "" && p.Parent != nil && !p.Group
}

func copyMap[V any](m map[model.FieldID]V) map[model.FieldID]V {
	out := make(map[model.FieldID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
