package params

const (
	// RolePropertyAdmin guards every mutator in this package.
	RolePropertyAdmin = "ROLE_PROPERTY_ADMIN"

	keyPriceConfigPrefix = "property/price/"
	keyPriceConfigIndex  = "property/price-index"
	keyFeePolicy         = "property/fees"
	keyIncomePolicy      = "property/income"
	keyBuybackBps        = "property/buyback-bps"
)

// MaxTotalFeeBps bounds the combined treasury and dev fee.
const MaxTotalFeeBps = 1_000

// MaxBuybackBps bounds the buyback percentage at 100%.
const MaxBuybackBps = 10_000
