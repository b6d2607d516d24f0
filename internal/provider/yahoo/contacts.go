package yahoo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/agentpost/agentpost/internal/email"
	"github.com/agentpost/agentpost/internal/provider"
)

// The Social API models a contact as a flat list of typed fields. The value
// shape depends on the field type: strings for email/phone, objects for
// name and birthday.
type contactsResponse struct {
	Contacts struct {
		Contact []socialContact `json:"contact"`
	} `json:"contacts"`
}

type socialContact struct {
	Fields []socialField `json:"fields"`
}

type socialField struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type nameValue struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

type birthdayValue struct {
	Day   string `json:"day"`
	Month string `json:"month"`
	Year  string `json:"year"`
}

func parseContacts(body []byte) ([]provider.Contact, error) {
	var resp contactsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode contacts response: %w", err)
	}

	var out []provider.Contact
	for _, sc := range resp.Contacts.Contact {
		if c, ok := fromSocialContact(sc); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func fromSocialContact(sc socialContact) (provider.Contact, bool) {
	c := provider.Contact{}
	for _, f := range sc.Fields {
		switch f.Type {
		case "email":
			var v string
			if err := json.Unmarshal(f.Value, &v); err == nil && c.Email == "" {
				c.Email = email.Normalize(v)
			}
		case "phone":
			var v string
			if err := json.Unmarshal(f.Value, &v); err == nil && c.Phone == "" {
				c.Phone = v
			}
		case "name":
			var v nameValue
			if err := json.Unmarshal(f.Value, &v); err == nil {
				c.FirstName = v.GivenName
				c.LastName = v.FamilyName
			}
		case "birthday":
			var v birthdayValue
			if err := json.Unmarshal(f.Value, &v); err != nil {
				continue
			}
			if bd, ok := birthdate(v); ok {
				c.Birthdate = &bd
			}
		}
	}
	if c.Email == "" {
		return c, false
	}
	return c, true
}

func birthdate(v birthdayValue) (time.Time, bool) {
	day, err := strconv.Atoi(v.Day)
	if err != nil || day < 1 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(v.Month)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(v.Year)
	if err != nil || year == 0 {
		// Yahoo omits the year for birthday-only dates.
		year = 1900
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}
