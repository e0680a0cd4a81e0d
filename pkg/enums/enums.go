// Package enums holds the closed string sets stored in check-constrained columns.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](kind string, set []T, value string) (T, error) {
	if v := T(value); slices.Contains(set, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}

// UserRole is the profiles.role column.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) String() string { return string(r) }
func (r UserRole) IsValid() bool  { return slices.Contains(userRoles, r) }

func ParseUserRole(value string) (UserRole, error) { return parse("user role", userRoles, value) }

// OrderStatus is the orders.status column. Checkout only ever writes completed.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled}

func (s OrderStatus) String() string { return string(s) }
func (s OrderStatus) IsValid() bool  { return slices.Contains(orderStatuses, s) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", orderStatuses, value)
}
