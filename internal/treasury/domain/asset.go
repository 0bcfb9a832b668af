package domain

import (
	"errors"
	"strings"

	"github.com/finialabs/outlay/internal/treasury/rate"
)

// ErrInvalidAsset indicates a missing asset code or an unsupported precision.
var ErrInvalidAsset = errors.New("asset is invalid")

// Asset identifies a settlement asset and its native precision.
type Asset struct {
	// Code is the asset identifier, e.g. "usdc".
	Code string
	// Decimals is the asset's native decimal count.
	Decimals int32
}

// NormalizeAsset trims and validates an asset descriptor.
func NormalizeAsset(asset Asset) (Asset, error) {
	asset.Code = strings.ToLower(strings.TrimSpace(asset.Code))
	if asset.Code == "" {
		return Asset{}, ErrInvalidAsset
	}
	if asset.Decimals < 0 || asset.Decimals >= rate.Precision {
		return Asset{}, ErrInvalidAsset
	}
	return asset, nil
}
