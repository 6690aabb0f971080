package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"github.com/barguni/barguni-api/internal/apperr"
	"github.com/barguni/barguni-api/internal/model"
	"github.com/barguni/barguni-api/internal/service"
	"github.com/barguni/barguni-api/pkg/validator"
)

type ResolveProductRequest struct {
	Barcode string `json:"barcode" validate:"required,barcode"`
}

type ProductResponse struct {
	ID        uuid.UUID       `json:"id"`
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	Picture   PictureResponse `json:"picture"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID,
		Barcode:   p.Barcode,
		Name:      p.Name,
		Picture:   newPictureResponse(p.Picture),
		CreatedAt: p.CreatedAt,
	}
}

type productHandler struct {
	productSvc service.ProductService
	validator  validator.Validator
}

func newProductHandler(productSvc service.ProductService, v validator.Validator) *productHandler {
	return &productHandler{
		productSvc: productSvc,
		validator:  v,
	}
}

// ResolveProduct answers 201 when the barcode produced a new product and 200
// when it already existed.
func (h *productHandler) ResolveProduct(r *http.Request) (response, error) {
	var req ResolveProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return response{}, apperr.ValidationErr.WrapParent(fmt.Errorf("decode request body: %w", err))
	}
	if err := h.validator.Validate(req); err != nil {
		return response{}, apperr.ValidationErr.WrapParent(err)
	}

	res, err := h.productSvc.ResolveProduct(r.Context(), req.Barcode)
	if err != nil {
		return response{}, fmt.Errorf("product service resolve product: %w", err)
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	return response{status: status, body: newProductResponse(res.Product)}, nil
}

func (h *productHandler) ListProducts(r *http.Request) (response, error) {
	products, err := h.productSvc.ListProducts(r.Context())
	if err != nil {
		return response{}, fmt.Errorf("product service list products: %w", err)
	}

	items := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		items = append(items, newProductResponse(product))
	}

	return response{status: http.StatusOK, body: items}, nil
}

func (h *productHandler) GetProduct(r *http.Request) (response, error) {
	id, err := uuidPathParam(r, "productId")
	if err != nil {
		return response{}, err
	}

	product, err := h.productSvc.GetProduct(r.Context(), id)
	if err != nil {
		return response{}, fmt.Errorf("product service get product: %w", err)
	}

	return response{status: http.StatusOK, body: newProductResponse(product)}, nil
}

func (h *productHandler) GetProductByBarcode(r *http.Request) (response, error) {
	barcode := chi.URLParam(r, "barcode")
	if err := h.validator.Var(barcode, "barcode"); err != nil {
		return response{}, apperr.ValidationErr.WrapParent(err)
	}

	product, err := h.productSvc.GetProductByBarcode(r.Context(), barcode)
	if err != nil {
		return response{}, fmt.Errorf("product service get product by barcode: %w", err)
	}

	return response{status: http.StatusOK, body: newProductResponse(product)}, nil
}

func uuidPathParam(r *http.Request, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		return uuid.Nil, apperr.ValidationErr.WrapParent(fmt.Errorf("invalid format for parameter %s: %w", name, err))
	}

	return id, nil
}
