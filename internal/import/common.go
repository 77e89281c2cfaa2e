package import_pkg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/reicrm/internal/normalize"
	"github.com/reicrm/internal/store"
)

// CSVRow maps recognized column names to cell values. A missing key means
// the column was not present in the upload.
type CSVRow map[string]string

// Recognized column names
const (
	ColOwnerName  = "OwnerName"
	ColAddress    = "Address"
	ColCity       = "City"
	ColState      = "State"
	ColZip        = "Zip"
	ColParcelID   = "ParcelId"
	ColLLCContact = "LLC Contact"
	ColOwnerAddr  = "OwnerAddress"
	ColOwnerCity  = "OwnerCity"
	ColOwnerState = "OwnerState"
	ColOwnerZip   = "OwnerZip"
	ColEmail1     = "Email 1"
	ColEmail2     = "Email 2"
	ColWireless1  = "Wireless 1"
	ColLandline1  = "Landline 1"

	// alternate display-address key some mappings target
	colStreetAddress = "street_address"
)

// Fields lists every column the importer understands, in display order.
// Used as the default target list for mapping suggestions.
var Fields = []string{
	ColOwnerName, ColAddress, ColCity, ColState, ColZip, ColParcelID,
	ColLLCContact, ColOwnerAddr, ColOwnerCity, ColOwnerState, ColOwnerZip,
	ColEmail1, ColEmail2,
	"Wireless 1", "Wireless 2", "Wireless 3", "Wireless 4",
	"Landline 1", "Landline 2", "Landline 3", "Landline 4",
}

// get returns a trimmed value or nil when the column is absent or blank
func (r CSVRow) get(key string) *string {
	v, ok := r[key]
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// ProcessedOwner is the owner half of a parsed row
type ProcessedOwner struct {
	FirstName     string
	LastName      string
	FullName      *string
	LLCContact    *string
	StreetAddress *string
	City          *string
	State         *string
	ZipCode       *string
	Contacts      []store.ContactSeed
}

// ProcessedProperty is the property half of a parsed row
type ProcessedProperty struct {
	StreetAddress string
	City          string
	ZipCode       int
	State         *string
	ParcelID      *string
}

// ParseCSVLine splits one line on commas outside double quotes. Quotes
// toggle quoted mode and are dropped; doubled quotes are not unescaped and
// fields are not trimmed.
func ParseCSVLine(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, current.String())

	return fields
}

// ProcessRow splits a row into owner and property parts. The owner's first
// token becomes the first name and the rest the last name. Contacts are
// extracted separately by ContactsFromRow.
func ProcessRow(row CSVRow) (ProcessedOwner, ProcessedProperty) {
	var owner ProcessedOwner

	name := strings.TrimSpace(row[ColOwnerName])
	if name != "" {
		parts := strings.Fields(name)
		owner.FirstName = parts[0]
		owner.LastName = strings.Join(parts[1:], " ")
		owner.FullName = &name
	}
	owner.LLCContact = row.get(ColLLCContact)
	owner.StreetAddress = row.get(ColOwnerAddr)
	owner.City = row.get(ColOwnerCity)
	owner.State = row.get(ColOwnerState)
	owner.ZipCode = row.get(ColOwnerZip)
	owner.Contacts = []store.ContactSeed{}

	property := ProcessedProperty{
		StreetAddress: row[ColAddress],
		City:          "unknown",
		State:         row.get(ColState),
		ParcelID:      row.get(ColParcelID),
	}
	if city := strings.TrimSpace(row[ColCity]); city != "" {
		property.City = city
	}
	if zip, err := parseZip(row[ColZip]); err == nil {
		property.ZipCode = zip
	}

	return owner, property
}

// parseZip reads the leading digits of a zip, so "98101-1234" is 98101
func parseZip(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("invalid zip %q", s)
	}
	return strconv.Atoi(s[:end])
}

// ContactsFromRow builds contact seeds from the email, wireless and landline
// columns. Priority follows the column number, so a blank "Email 1" still
// leaves "Email 2" at priority 2.
func ContactsFromRow(row CSVRow) []store.ContactSeed {
	var seeds []store.ContactSeed

	for i := 1; i <= 2; i++ {
		if email := row.get(fmt.Sprintf("Email %d", i)); email != nil {
			seeds = append(seeds, store.ContactSeed{Email: email, Type: store.ContactEmail, Priority: i})
		}
	}

	groups := []struct {
		prefix string
		kind   string
	}{
		{"Wireless", store.ContactCell},
		{"Landline", store.ContactLandline},
	}
	for _, g := range groups {
		for i := 1; i <= 4; i++ {
			raw := row.get(fmt.Sprintf("%s %d", g.prefix, i))
			if raw == nil {
				continue
			}
			phone := normalize.NormalizePhone(*raw)
			if phone == "" {
				continue
			}
			seeds = append(seeds, store.ContactSeed{Phone: &phone, Type: g.kind, Priority: i})
		}
	}

	return seeds
}
