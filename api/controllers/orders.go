package controllers

import (
	"net/http"

	"github.com/0111v/projeto-faculdade/api/middleware"
	"github.com/0111v/projeto-faculdade/api/responses"
	"github.com/0111v/projeto-faculdade/api/validators"
	"github.com/0111v/projeto-faculdade/internal/checkout"
	"github.com/0111v/projeto-faculdade/internal/orders"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

// OrderCheckout turns the caller's cart into an order.
func OrderCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkout.CustomerInfo
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := sanitizeCustomerInfo(&payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrderFromCart(r.Context(), userID, enums.UserRole(middleware.RoleFromContext(r.Context())), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderList returns the caller's own orders, newest first.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "id", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		viewer := orders.Viewer{
			UserID: userID,
			Role:   enums.UserRole(middleware.RoleFromContext(r.Context())),
		}
		order, err := svc.Get(r.Context(), viewer, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdminOrderList returns every order in the store.
func AdminOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		list, err := svc.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// sanitizeCustomerInfo trims the customer fields and checks them again so
// whitespace-only values are rejected.
func sanitizeCustomerInfo(info *checkout.CustomerInfo) error {
	info.Name = validators.SanitizeString(info.Name, 200)
	info.Phone = validators.SanitizeString(info.Phone, 40)
	info.Address = validators.SanitizeString(info.Address, 500)
	return validators.Validate(info)
}
