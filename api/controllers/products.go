package controllers

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/0111v/projeto-faculdade/api/middleware"
	"github.com/0111v/projeto-faculdade/api/responses"
	"github.com/0111v/projeto-faculdade/api/validators"
	"github.com/0111v/projeto-faculdade/internal/media"
	productsvc "github.com/0111v/projeto-faculdade/internal/products"
	pkgerrors "github.com/0111v/projeto-faculdade/pkg/errors"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
)

const (
	imageFormField        = "file"
	multipartOverhead     = 1 << 20
	multipartMemoryBuffer = 8 << 20
)

type createProductRequest struct {
	Name     string           `json:"name" validate:"required,notblank,max=200"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
	Quantity *int             `json:"quantity" validate:"required"`
	ImageURL *string          `json:"image_url,omitempty"`
}

type updateProductRequest struct {
	Name     *string                   `json:"name,omitempty"`
	Price    *decimal.Decimal          `json:"price,omitempty"`
	Quantity *int                      `json:"quantity,omitempty"`
	ImageURL productsvc.NullableString `json:"image_url"`
}

// ProductList returns the whole catalog, newest first.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "id", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductCreate handles admin product creation.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), productsvc.CreateProductInput{
			Name:     payload.Name,
			Price:    *payload.Price,
			Quantity: *payload.Quantity,
			ImageURL: payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// ProductUpdate applies a partial patch. Omitted fields keep their value.
func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "id", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), id, productsvc.UpdateProductInput{
			Name:     payload.Name,
			Price:    payload.Price,
			Quantity: payload.Quantity,
			ImageURL: payload.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := parseUUIDParam(r, "id", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var actor *outbox.ActorRef
		if userID, ok := middleware.UserUUIDFromContext(r.Context()); ok {
			actor = &outbox.ActorRef{UserID: userID, Role: middleware.RoleFromContext(r.Context())}
		}
		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// ProductImageUpload stores one multipart image and returns its public URL.
func ProductImageUpload(svc media.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "image uploads disabled"))
			return
		}

		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		}
		if err := r.ParseMultipartForm(multipartMemoryBuffer); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(imageFormField)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "no file provided").
				WithDetails(map[string]string{imageFormField: "is required"}))
			return
		}
		defer file.Close()

		result, err := svc.Upload(r.Context(), media.UploadInput{
			FileName: header.Filename,
			Size:     header.Size,
			Body:     file,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
