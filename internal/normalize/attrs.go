package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nhle/contacts/internal/model"
)

var (
	emailAttrPattern   = regexp.MustCompile(`^email(\d*)$`)
	phoneAttrPattern   = regexp.MustCompile(`^(.*)Phone(\d*)$`)
	urlAttrPattern     = regexp.MustCompile(`^(.*)URL(\d*)$`)
	addressAttrPattern = regexp.MustCompile(`^(.*)(City|Country|PostalCode|State|Street)(\d*)$`)
)

// addressSubfields lists the address parts in encoding order.
var addressSubfields = []string{"Street", "City", "State", "PostalCode", "Country"}

func phoneType(prefix string) string {
	switch prefix {
	case model.TypeMobile, model.TypeWork, model.TypeHome:
		return prefix
	}
	return model.TypeOther
}

func urlType(prefix string) string {
	switch prefix {
	case model.TypeWork, model.TypeHome:
		return prefix
	}
	return model.TypeOther
}

// addressType maps an address key prefix to its type. Home and work are
// kept, anything else is other.
func addressType(prefix string) string {
	return urlType(prefix)
}

// decodedAttrs is the structured view of a flat attribute map. A nil map
// means no attribute of that kind was present.
type decodedAttrs struct {
	scalars map[model.ScalarField]string
	email   map[model.FieldID]model.Email
	phone   map[model.FieldID]model.Phone
	address map[model.FieldID]model.Address
	url     map[model.FieldID]model.URL
}

// slot is a multi-value entry found in the attribute map before it gets
// its final FieldID. Canonical slots (prefix equal to the type, e.g.
// homePhone) keep their id; others (carPhone) take the next free one.
type slot struct {
	kind      model.FieldKind
	prefix    string
	typ       string
	index     int
	canonical bool
}

func (s slot) id() model.FieldID {
	return model.FieldID{Kind: s.kind, Type: s.typ, Index: s.index}
}

func sortedAttrKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// decodeAttrs classifies every attribute key. Keys that match no category
// are ignored.
func decodeAttrs(values map[string]string) decodedAttrs {
	var out decodedAttrs

	type addrSlot struct {
		slot
		value model.Address
	}
	var (
		phones    = map[slot]string{}
		urls      = map[slot]string{}
		addresses = map[slot]*addrSlot{}
	)

	for _, key := range sortedAttrKeys(values) {
		value := values[key]

		if model.IsScalarField(key) {
			if out.scalars == nil {
				out.scalars = make(map[model.ScalarField]string)
			}
			out.scalars[model.ScalarField(key)] = value
			continue
		}

		if m := emailAttrPattern.FindStringSubmatch(key); m != nil {
			if out.email == nil {
				out.email = make(map[model.FieldID]model.Email)
			}
			id := model.FieldID{Kind: model.KindEmail, Index: model.ParseIndex(m[1])}
			out.email[id] = model.Email{Mail: value}
			continue
		}

		if m := phoneAttrPattern.FindStringSubmatch(key); m != nil {
			typ := phoneType(m[1])
			s := slot{model.KindPhone, m[1], typ, model.ParseIndex(m[2]), m[1] == typ}
			phones[s] = value
			continue
		}

		if m := urlAttrPattern.FindStringSubmatch(key); m != nil {
			typ := urlType(m[1])
			s := slot{model.KindURL, m[1], typ, model.ParseIndex(m[2]), m[1] == typ}
			urls[s] = value
			continue
		}

		if m := addressAttrPattern.FindStringSubmatch(key); m != nil {
			typ := addressType(m[1])
			s := slot{model.KindAddress, m[1], typ, model.ParseIndex(m[3]), m[1] == typ}
			a, ok := addresses[s]
			if !ok {
				a = &addrSlot{slot: s, value: model.Address{Type: typ}}
				addresses[s] = a
			}
			switch m[2] {
			case "Street":
				a.value.Street = value
			case "City":
				a.value.City = value
			case "State":
				a.value.State = value
			case "PostalCode":
				a.value.PostalCode = value
			case "Country":
				a.value.Country = value
			}
		}
	}

	if len(phones) > 0 {
		out.phone = make(map[model.FieldID]model.Phone, len(phones))
		for _, s := range orderSlots(phones) {
			id := assignID(s, model.SortedKeys(out.phone))
			out.phone[id] = model.Phone{Number: phones[s], Type: s.typ}
		}
	}
	if len(urls) > 0 {
		out.url = make(map[model.FieldID]model.URL, len(urls))
		for _, s := range orderSlots(urls) {
			id := assignID(s, model.SortedKeys(out.url))
			out.url[id] = model.URL{URL: urls[s], Type: s.typ}
		}
	}
	if len(addresses) > 0 {
		out.address = make(map[model.FieldID]model.Address, len(addresses))
		for _, s := range orderSlots(addresses) {
			id := assignID(s, model.SortedKeys(out.address))
			out.address[id] = addresses[s].value
		}
	}

	return out
}

// orderSlots puts canonical slots first so they keep their ids, then
// orders by prefix and index for a deterministic result.
func orderSlots[V any](m map[slot]V) []slot {
	slots := make([]slot, 0, len(m))
	for s := range m {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.canonical != b.canonical {
			return a.canonical
		}
		if a.prefix != b.prefix {
			return a.prefix < b.prefix
		}
		return a.index < b.index
	})
	return slots
}

func assignID(s slot, taken []model.FieldID) model.FieldID {
	id := s.id()
	if s.canonical {
		return id
	}
	for _, t := range taken {
		if t == id {
			return model.NextFieldID(s.kind, s.typ, taken)
		}
	}
	return id
}

// encodeAttrs flattens the structured fields of c into wire attributes.
// Empty values are omitted.
func encodeAttrs(c model.Contact) []attrPair {
	var out []attrPair

	for _, f := range model.ScalarFields {
		if v := c.Scalar(f); v != "" {
			out = append(out, attrPair{string(f), v})
		}
	}

	for _, id := range model.SortedKeys(c.Email) {
		if v := c.Email[id].Mail; v != "" {
			out = append(out, attrPair{id.String(), v})
		}
	}

	for _, id := range model.SortedKeys(c.Phone) {
		if v := c.Phone[id].Number; v != "" {
			out = append(out, attrPair{id.String(), v})
		}
	}

	for _, id := range model.SortedKeys(c.Address) {
		a := c.Address[id]
		suffix := strings.TrimPrefix(id.String(), id.Type+"Address")
		for _, sub := range addressSubfields {
			var v string
			switch sub {
			case "Street":
				v = a.Street
			case "City":
				v = a.City
			case "State":
				v = a.State
			case "PostalCode":
				v = a.PostalCode
			case "Country":
				v = a.Country
			}
			if v != "" {
				out = append(out, attrPair{id.Type + sub + suffix, v})
			}
		}
	}

	for _, id := range model.SortedKeys(c.URL) {
		if v := c.URL[id].URL; v != "" {
			out = append(out, attrPair{id.String(), v})
		}
	}

	return out
}

type attrPair struct {
	name  string
	value string
}
