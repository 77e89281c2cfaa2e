package import_pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reicrm/internal/store"
)

func TestParseCSVLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"quoted comma", `"Smith, John",123 Main St`, []string{"Smith, John", "123 Main St"}},
		{"empty fields", "a,,c,", []string{"a", "", "c", ""}},
		{"untrimmed", " a , b ", []string{" a ", " b "}},
		{"doubled quote not unescaped", `"say ""hi""",x`, []string{"say hi", "x"}},
		{"empty line", "", []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCSVLine(tt.line))
		})
	}
}

func TestProcessRow(t *testing.T) {
	row := CSVRow{
		ColOwnerName:  "John Q Smith",
		ColAddress:    "123 Main St",
		ColCity:       "Seattle",
		ColState:      "WA",
		ColZip:        "98101-1234",
		ColParcelID:   " 0042 ",
		ColLLCContact: "",
		ColOwnerAddr:  "9 Elm Rd",
		ColOwnerCity:  "Tacoma",
	}

	owner, property := ProcessRow(row)

	assert.Equal(t, "John", owner.FirstName)
	assert.Equal(t, "Q Smith", owner.LastName)
	require.NotNil(t, owner.FullName)
	assert.Equal(t, "John Q Smith", *owner.FullName)
	assert.Nil(t, owner.LLCContact)
	require.NotNil(t, owner.StreetAddress)
	assert.Equal(t, "9 Elm Rd", *owner.StreetAddress)
	assert.Nil(t, owner.State)
	assert.Empty(t, owner.Contacts)

	assert.Equal(t, "123 Main St", property.StreetAddress)
	assert.Equal(t, "Seattle", property.City)
	assert.Equal(t, 98101, property.ZipCode)
	require.NotNil(t, property.ParcelID)
	assert.Equal(t, "0042", *property.ParcelID)
}

func TestProcessRowDefaults(t *testing.T) {
	_, property := ProcessRow(CSVRow{ColAddress: "1 A St", ColCity: "  ", ColZip: "n/a"})
	assert.Equal(t, "unknown", property.City)
	assert.Equal(t, 0, property.ZipCode)
	assert.Nil(t, property.State)
}

func TestContactsFromRow(t *testing.T) {
	row := CSVRow{
		"Email 1":    "",
		"Email 2":    "jane@email.com",
		"Wireless 1": "(206) 555-0101",
		"Wireless 3": "1-206-555-0103",
		"Landline 1": "206.555.0199",
	}

	seeds := ContactsFromRow(row)
	require.Len(t, seeds, 4)

	assert.Equal(t, store.ContactEmail, seeds[0].Type)
	assert.Equal(t, "jane@email.com", *seeds[0].Email)
	assert.Equal(t, 2, seeds[0].Priority)
	assert.Nil(t, seeds[0].Phone)

	assert.Equal(t, store.ContactCell, seeds[1].Type)
	assert.Equal(t, "2065550101", *seeds[1].Phone)
	assert.Equal(t, 1, seeds[1].Priority)

	assert.Equal(t, store.ContactCell, seeds[2].Type)
	assert.Equal(t, "2065550103", *seeds[2].Phone)
	assert.Equal(t, 3, seeds[2].Priority)

	assert.Equal(t, store.ContactLandline, seeds[3].Type)
	assert.Equal(t, "2065550199", *seeds[3].Phone)
	assert.Nil(t, seeds[3].Email)
}

func TestContactsFromRowEmpty(t *testing.T) {
	assert.Empty(t, ContactsFromRow(CSVRow{ColOwnerName: "x"}))
}
