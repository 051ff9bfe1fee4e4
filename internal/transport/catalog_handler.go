package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos-core/internal/domain"
	"pos-core/internal/middleware"
	"pos-core/internal/printing"
	"pos-core/internal/repository"
	"pos-core/internal/service"
)

// ProductRequest is the create and full-update payload of a product
type ProductRequest struct {
	SKU        string           `json:"sku" validate:"required"`
	Barcode    *string          `json:"barcode"`
	Name       string           `json:"name" validate:"required"`
	Price      decimal.Decimal  `json:"price" validate:"gte=0"`
	Cost       *decimal.Decimal `json:"cost"`
	CategoryID *string          `json:"category_id" validate:"omitempty,uuid"`
	TaxRateID  *string          `json:"tax_rate_id" validate:"omitempty,uuid"`
	Active     *bool            `json:"active"`
}

// CategoryRequest creates a category, optionally under a parent
type CategoryRequest struct {
	Name     string  `json:"name" validate:"required"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
}

// TaxRateRequest creates a tax rate; rate is a fraction (0.21 = 21%)
type TaxRateRequest struct {
	Name string          `json:"name" validate:"required"`
	Rate decimal.Decimal `json:"rate" validate:"gte=0"`
}

// LabelPrintRequest asks for barcode labels of a product
type LabelPrintRequest struct {
	Copies int    `json:"copies" validate:"gte=1,lte=100"`
	Title  string `json:"title"`
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Items    []*domain.Product `json:"items"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// LabelPrinter prints barcode labels
type LabelPrinter interface {
	PrintLabel(ctx context.Context, req printing.LabelRequest) error
}

// CatalogHandler serves product lookup and catalog maintenance
type CatalogHandler struct {
	catalog service.CatalogService
	labels  LabelPrinter
	logger  *zap.Logger
}

func NewCatalogHandler(catalog service.CatalogService, labels LabelPrinter, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, labels: labels, logger: logger.Named("catalog_handler")}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router, rt Routes) {
	r.Route("/api/catalog", func(r chi.Router) {
		r.With(rt.Protect(service.OpCheckout)).Get("/products/lookup", h.Lookup)
		r.With(rt.Protect(service.OpLabelPrint)).Post("/products/{id}/label", h.PrintLabel)

		r.Group(func(r chi.Router) {
			r.Use(rt.Protect(service.OpCatalogManage))
			r.Get("/products", h.ListProducts)
			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeactivateProduct)
			r.Get("/categories", h.ListCategories)
			r.Post("/categories", h.CreateCategory)
			r.Get("/tax-rates", h.ListTaxRates)
			r.Post("/tax-rates", h.CreateTaxRate)
		})
	})
}

func (h *CatalogHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.LookupProduct(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := queryUUID(r, "category_id")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	filter := repository.ProductFilter{
		CategoryID: categoryID,
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
		Page:       queryInt(r, "page", 1),
		PageSize:   queryInt(r, "page_size", 50),
	}

	products, total, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ProductPage{
		Items:    products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func (req ProductRequest) apply(p *domain.Product) error {
	categoryID, err := optionalUUID(req.CategoryID)
	if err != nil {
		return err
	}
	taxRateID, err := optionalUUID(req.TaxRateID)
	if err != nil {
		return err
	}

	p.SKU = req.SKU
	p.Barcode = req.Barcode
	p.Name = req.Name
	p.Price = req.Price
	p.Cost = req.Cost
	p.CategoryID = categoryID
	p.TaxRateID = taxRateID
	if req.Active != nil {
		p.Active = *req.Active
	}
	return nil
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product := &domain.Product{ID: uuid.New(), Active: true}
	if err := req.apply(product); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	if err := h.catalog.CreateProduct(r.Context(), actor(r), product); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	if err := req.apply(product); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	if err := h.catalog.UpdateProduct(r.Context(), actor(r), product); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	if err := h.catalog.DeactivateProduct(r.Context(), actor(r), id); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	parentID, err := optionalUUID(req.ParentID)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	category := &domain.Category{ID: uuid.New(), Name: req.Name, ParentID: parentID}
	if err := h.catalog.CreateCategory(r.Context(), actor(r), category); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *CatalogHandler) ListTaxRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.catalog.ListTaxRates(r.Context())
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, rates)
}

func (h *CatalogHandler) CreateTaxRate(w http.ResponseWriter, r *http.Request) {
	var req TaxRateRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	rate := &domain.TaxRate{ID: uuid.New(), Name: req.Name, Rate: req.Rate}
	if err := h.catalog.CreateTaxRate(r.Context(), actor(r), rate); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, rate)
}

// PrintLabel prints labels for a product's barcode, or its SKU when the
// product has no barcode.
func (h *CatalogHandler) PrintLabel(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	var req LabelPrintRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}

	label := printing.LabelRequest{Barcode: product.SKU, Title: product.Name, Copies: req.Copies}
	if product.Barcode != nil && *product.Barcode != "" {
		label.Barcode = *product.Barcode
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		label.Title = t
	}

	if err := h.labels.PrintLabel(r.Context(), label); err != nil {
		middleware.RespondWithAppError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
