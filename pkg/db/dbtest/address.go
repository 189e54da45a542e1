package dbtest

import "github.com/srrfarms/storefront-api/pkg/types"

// DefaultAddress is the address seeded on test users.
func DefaultAddress() *types.Address {
	return &types.Address{
		Line1:      "4-12 Farm Road",
		City:       "Guntur",
		State:      "Andhra Pradesh",
		PostalCode: "522001",
		Country:    "IN",
	}
}
