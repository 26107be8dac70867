package enums

import "fmt"

// ProductType separates headline products from side items.
type ProductType string

const (
	ProductTypeMain ProductType = "main"
	ProductTypeSide ProductType = "side"
)

func (t ProductType) IsValid() bool {
	return t == ProductTypeMain || t == ProductTypeSide
}

func ParseProductType(value string) (ProductType, error) {
	t := ProductType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid product type %q", value)
	}
	return t, nil
}
