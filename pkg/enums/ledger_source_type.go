package enums

import "fmt"

// LedgerSourceType identifies the record that caused a ledger entry.
type LedgerSourceType string

const (
	LedgerSourceInvoice          LedgerSourceType = "invoice"
	LedgerSourcePayment          LedgerSourceType = "payment"
	LedgerSourceSubscriptionBill LedgerSourceType = "subscription_bill"
	LedgerSourceCommission       LedgerSourceType = "commission"
	LedgerSourceExpense          LedgerSourceType = "expense"
	LedgerSourceReversal         LedgerSourceType = "reversal"
)

var validLedgerSourceTypes = []LedgerSourceType{
	LedgerSourceInvoice,
	LedgerSourcePayment,
	LedgerSourceSubscriptionBill,
	LedgerSourceCommission,
	LedgerSourceExpense,
	LedgerSourceReversal,
}

// String implements fmt.Stringer.
func (l LedgerSourceType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerSourceType.
func (l LedgerSourceType) IsValid() bool {
	for _, candidate := range validLedgerSourceTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerSourceType converts raw input into a LedgerSourceType.
func ParseLedgerSourceType(value string) (LedgerSourceType, error) {
	for _, candidate := range validLedgerSourceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger source type %q", value)
}
