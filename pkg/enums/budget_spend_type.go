package enums

import "fmt"

// BudgetSpendType is the monthly office budget bucket an item's spend counts against.
type BudgetSpendType string

const (
	BudgetSpendDental        BudgetSpendType = "dental"
	BudgetSpendOffice        BudgetSpendType = "office"
	BudgetSpendMiscellaneous BudgetSpendType = "miscellaneous"
)

var validBudgetSpendTypes = []BudgetSpendType{
	BudgetSpendDental,
	BudgetSpendOffice,
	BudgetSpendMiscellaneous,
}

// String implements fmt.Stringer.
func (b BudgetSpendType) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BudgetSpendType.
func (b BudgetSpendType) IsValid() bool {
	for _, candidate := range validBudgetSpendTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBudgetSpendType converts raw input into a BudgetSpendType.
func ParseBudgetSpendType(value string) (BudgetSpendType, error) {
	for _, candidate := range validBudgetSpendTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid budget spend type %q", value)
}
