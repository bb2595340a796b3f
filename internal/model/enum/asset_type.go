package enum

import "strings"

// AssetType stock, etf, fx, crypto
type AssetType uint8

const (
	_asset_type_beg AssetType = iota
	AssetTypeStock
	AssetTypeETF
	AssetTypeFX
	AssetTypeCrypto
	_asset_type_end
)

var assetTypeNames = [...]string{
	AssetTypeStock:  "stock",
	AssetTypeETF:    "etf",
	AssetTypeFX:     "fx",
	AssetTypeCrypto: "crypto",
}

func (a AssetType) IsAvailable() bool {
	return a > _asset_type_beg && a < _asset_type_end
}

func (a AssetType) String() string {
	if !a.IsAvailable() {
		return "unknown"
	}
	return assetTypeNames[a]
}

// ParseAssetType accepts both the canonical names and the ticker file
// codes (STK, ETF, FX, CRYPTO).
func ParseAssetType(s string) (AssetType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "stk":
		return AssetTypeStock, true
	case "etf":
		return AssetTypeETF, true
	case "fx":
		return AssetTypeFX, true
	case "crypto":
		return AssetTypeCrypto, true
	default:
		return 0, false
	}
}
