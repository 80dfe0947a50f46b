package model

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// FieldKind identifies which multi-value map a field belongs to.
type FieldKind int

const (
	KindEmail FieldKind = iota
	KindPhone
	KindAddress
	KindURL
)

// Field type tags shared by phone, address and URL entries.
const (
	TypeHome   = "home"
	TypeWork   = "work"
	TypeOther  = "other"
	TypeMobile = "mobile"
)

// FieldID names one entry of a multi-value contact field. Index starts at 1;
// the first entry of a type uses the bare name (homePhone), later ones carry
// the index as a suffix (homePhone2).
type FieldID struct {
	Kind  FieldKind
	Type  string
	Index int
}

// String encodes the id in its wire form: email, email2, homePhone2,
// otherAddress2, workURL.
func (f FieldID) String() string {
	suffix := ""
	if f.Index > 1 {
		suffix = strconv.Itoa(f.Index)
	}
	switch f.Kind {
	case KindEmail:
		return "email" + suffix
	case KindPhone:
		return f.Type + "Phone" + suffix
	case KindAddress:
		return f.Type + "Address" + suffix
	case KindURL:
		return f.Type + "URL" + suffix
	}
	return ""
}

// MarshalText lets FieldID-keyed maps encode as JSON objects.
func (f FieldID) MarshalText() ([]byte, error) {
	s := f.String()
	if s == "" {
		return nil, fmt.Errorf("invalid field id %+v", f)
	}
	return []byte(s), nil
}

// UnmarshalText decodes the wire form.
func (f *FieldID) UnmarshalText(b []byte) error {
	id, ok := ParseFieldID(string(b))
	if !ok {
		return fmt.Errorf("invalid field id %q", b)
	}
	*f = id
	return nil
}

var (
	emailIDPattern   = regexp.MustCompile(`^email(\d*)$`)
	phoneIDPattern   = regexp.MustCompile(`^(home|work|other|mobile)Phone(\d*)$`)
	addressIDPattern = regexp.MustCompile(`^(home|work|other)Address(\d*)$`)
	urlIDPattern     = regexp.MustCompile(`^(home|work|other)URL(\d*)$`)
)

// ParseFieldID decodes a field id produced by String.
func ParseFieldID(s string) (FieldID, bool) {
	if m := emailIDPattern.FindStringSubmatch(s); m != nil {
		return FieldID{Kind: KindEmail, Index: ParseIndex(m[1])}, true
	}
	if m := phoneIDPattern.FindStringSubmatch(s); m != nil {
		return FieldID{Kind: KindPhone, Type: m[1], Index: ParseIndex(m[2])}, true
	}
	if m := addressIDPattern.FindStringSubmatch(s); m != nil {
		return FieldID{Kind: KindAddress, Type: m[1], Index: ParseIndex(m[2])}, true
	}
	if m := urlIDPattern.FindStringSubmatch(s); m != nil {
		return FieldID{Kind: KindURL, Type: m[1], Index: ParseIndex(m[2])}, true
	}
	return FieldID{}, false
}

// ParseIndex converts a numeric key suffix to an index. An empty or
// unparsable suffix is index 1.
func ParseIndex(suffix string) int {
	if suffix == "" {
		return 1
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// NextFieldID returns the id for a new entry of the given kind and type.
// The index is the number of existing entries of that type plus one; when
// that id is still taken because a middle entry was removed, the index
// keeps increasing until a free one is found.
func NextFieldID(kind FieldKind, typ string, existing []FieldID) FieldID {
	if kind == KindEmail {
		typ = ""
	}
	taken := make(map[FieldID]bool, len(existing))
	count := 0
	for _, id := range existing {
		if id.Kind != kind || id.Type != typ {
			continue
		}
		taken[id] = true
		count++
	}
	next := FieldID{Kind: kind, Type: typ, Index: count + 1}
	for taken[next] {
		next.Index++
	}
	return next
}

var typeRank = map[string]int{
	"":         0,
	TypeHome:   1,
	TypeWork:   2,
	TypeMobile: 3,
	TypeOther:  4,
}

// SortFieldIDs orders ids by type then index so that encodings are stable.
func SortFieldIDs(ids []FieldID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Kind != ids[j].Kind {
			return ids[i].Kind < ids[j].Kind
		}
		ri, rj := typeRank[ids[i].Type], typeRank[ids[j].Type]
		if ri != rj {
			return ri < rj
		}
		return ids[i].Index < ids[j].Index
	})
}

// SortedKeys returns the keys of a multi-value map in encoding order.
func SortedKeys[V any](m map[FieldID]V) []FieldID {
	keys := make([]FieldID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	SortFieldIDs(keys)
	return keys
}
