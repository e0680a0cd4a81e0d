package helpers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/0111v/projeto-faculdade/pkg/db/models"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
)

const (
	MinCustomerNameLength    = 3
	MinCustomerPhoneLength   = 10
	MinCustomerAddressLength = 10
)

// ValidateCustomerInfo checks the delivery snapshot and returns the trimmed values.
func ValidateCustomerInfo(name, phone, address string) (string, string, string, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	address = strings.TrimSpace(address)

	details := map[string]string{}
	if utf8.RuneCountInString(name) < MinCustomerNameLength {
		details["customer_name"] = fmt.Sprintf("must be at least %d characters", MinCustomerNameLength)
	}
	if utf8.RuneCountInString(phone) < MinCustomerPhoneLength {
		details["customer_phone"] = fmt.Sprintf("must be at least %d characters", MinCustomerPhoneLength)
	}
	if utf8.RuneCountInString(address) < MinCustomerAddressLength {
		details["customer_address"] = fmt.Sprintf("must be at least %d characters", MinCustomerAddressLength)
	}
	if len(details) > 0 {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return name, phone, address, nil
}

// StockViolations lists every cart line whose requested quantity exceeds the
// product's available stock, one message per product.
func StockViolations(lines []models.CartItem) []string {
	var out []string
	for _, line := range lines {
		if line.Product == nil {
			continue
		}
		if line.Quantity > line.Product.Quantity {
			out = append(out, InsufficientStockMessage(line.Product.Name, line.Product.Quantity, line.Quantity))
		}
	}
	return out
}

// InsufficientStockSummary puts each violation on its own line under a header.
func InsufficientStockSummary(violations []string) string {
	return "products without enough stock:\n" + strings.Join(violations, "\n")
}

// InsufficientStockMessage formats the per-product stock failure line.
func InsufficientStockMessage(name string, available, requested int) string {
	return fmt.Sprintf("%s: insufficient stock (available: %d, requested: %d)", name, available, requested)
}
