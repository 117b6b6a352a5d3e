package enums

// Currency of vendor order totals. Vendors only bill in USD today.
type Currency string

const CurrencyUSD Currency = "USD"

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}
