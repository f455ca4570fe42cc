package repository

import (
	"context"

	"github.com/scmc-ops/hoscad/internal/model"
)

// ReferenceRepository serves the read-mostly lookup tables and banners.
type ReferenceRepository interface {
	// ListDestinations returns the transport destination table.
	ListDestinations(ctx context.Context) ([]model.Destination, error)
	// ListAddresses returns the address book.
	ListAddresses(ctx context.Context) ([]model.Address, error)
	// GetBanner returns the banner value for a key, "" when unset.
	GetBanner(ctx context.Context, key string) (string, error)
	// SetBanner stores a banner value; empty value clears it.
	SetBanner(ctx context.Context, key, value string) error
}
