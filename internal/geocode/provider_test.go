package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestComposeAddress(t *testing.T) {
	tests := []struct {
		name   string
		street string
		city   string
		state  *string
		zip    *string
		want   string
	}{
		{"full", "123 Main St", "Seattle", strPtr("WA"), strPtr("98101"), "123 Main St, Seattle, WA 98101"},
		{"no state", "123 Main St", "Seattle", nil, strPtr("98101"), "123 Main St, Seattle, 98101"},
		{"unknown city dropped", "123 Main St", "unknown", strPtr("WA"), nil, "123 Main St, WA"},
		{"blank parts", " 123 Main St ", "", strPtr(" "), nil, "123 Main St"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComposeAddress(tt.street, tt.city, tt.state, tt.zip))
		})
	}
}
