package enums

import "fmt"

// RecipientType names which party a payout is addressed to.
type RecipientType string

const (
	RecipientTypeFarmer      RecipientType = "farmer"
	RecipientTypeTransporter RecipientType = "transporter"
)

var validRecipientTypes = []RecipientType{
	RecipientTypeFarmer,
	RecipientTypeTransporter,
}

// String implements fmt.Stringer.
func (r RecipientType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RecipientType.
func (r RecipientType) IsValid() bool {
	for _, candidate := range validRecipientTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRecipientType converts raw input into a RecipientType.
func ParseRecipientType(value string) (RecipientType, error) {
	for _, candidate := range validRecipientTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid recipient type %q", value)
}
