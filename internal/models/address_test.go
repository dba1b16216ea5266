package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressQuery(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{
			"full",
			Address{Street: "123 Main St", City: "Springfield", State: "IL", Zip: "62701"},
			"123 Main St, Springfield, IL, 62701",
		},
		{
			"street only",
			Address{Street: "123 Main St"},
			"123 Main St",
		},
		{
			"raw wins when unstructured",
			Address{Street: "123 Main St Springfield", Raw: "123 Main St Springfield"},
			"123 Main St Springfield",
		},
		{
			"structured fields beat raw",
			Address{Street: "123 Main St", City: "Springfield", Raw: "whole line"},
			"123 Main St, Springfield",
		},
		{
			"skips blank fields",
			Address{Street: "123 Main St", State: "  ", Zip: "62701"},
			"123 Main St, 62701",
		},
		{
			"empty",
			Address{},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.Query())
		})
	}
}

func TestAddressIsEmpty(t *testing.T) {
	assert.True(t, Address{}.IsEmpty())
	assert.True(t, Address{Street: "   "}.IsEmpty())
	assert.False(t, Address{Street: "123 Main St"}.IsEmpty())
	assert.False(t, Address{Raw: "123 Main St"}.IsEmpty())
}
