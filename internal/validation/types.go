package validation

import (
	"fmt"
	"strings"
)

// Result is the outcome of validating a single upload row
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// String methods for debugging and logging
func (r Result) String() string {
	if r.IsValid {
		return "VALID"
	}
	return fmt.Sprintf("INVALID: %s", strings.Join(r.Errors, "; "))
}

// Column names checked by the row validator
const (
	FieldOwnerName = "OwnerName"
	FieldAddress   = "Address"
	FieldZip       = "Zip"
)

// EmailFields are validated for format when present
var EmailFields = []string{"Email 1", "Email 2"}

// PhoneFields are validated for NANP shape when present
var PhoneFields = []string{
	"Wireless 1", "Wireless 2", "Wireless 3", "Wireless 4",
	"Landline 1", "Landline 2", "Landline 3", "Landline 4",
}
