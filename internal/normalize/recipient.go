package normalize

import (
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/contacts/internal/model"
)

// DraftFromRecipient turns a mail recipient such as
// "Jane Q. Doe <jane@example.com>" into an unsaved contact in parent.
// The display name is split on its last space into first and last name.
func DraftFromRecipient(raw, parent string) (model.Contact, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return model.Contact{}, fmt.Errorf("parsing recipient %q: %w", raw, err)
	}

	c := model.Contact{
		Parent:  parent,
		Tags:    []string{},
		Email:   map[model.FieldID]model.Email{},
		Phone:   map[model.FieldID]model.Phone{},
		Address: map[model.FieldID]model.Address{},
		URL:     map[model.FieldID]model.URL{},
	}
	c.AddEmail(addr.Address)

	name := strings.TrimSpace(addr.Name)
	if i := strings.LastIndex(name, " "); i > 0 {
		c.FirstName = strings.TrimSpace(name[:i])
		c.LastName = strings.TrimSpace(name[i+1:])
	} else {
		c.FirstName = name
	}
	return c, nil
}
