package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/agromarket/internal/apperror"
	"github.com/sakif/agromarket/internal/integrity"
	"github.com/sakif/agromarket/internal/model"
	"github.com/sakif/agromarket/internal/repository"
	"github.com/sakif/agromarket/internal/validation"
)

type CategoryInput struct {
	CategoryName string `json:"category_name" validate:"required,max=100"`
	MainCategory string `json:"main_category" validate:"required,max=100"`
}

type categoryPatch struct {
	CategoryName *string `json:"category_name" validate:"omitempty,min=1,max=100"`
	MainCategory *string `json:"main_category" validate:"omitempty,min=1,max=100"`
}

type ProductInput struct {
	CategoryID  string `json:"category_id" validate:"required,entityid"`
	ProductName string `json:"product_name" validate:"required,max=100"`
	PictureURL  string `json:"picture_url" validate:"omitempty,url"`
}

type productPatch struct {
	CategoryID  *string `json:"category_id" validate:"omitempty,entityid"`
	ProductName *string `json:"product_name" validate:"omitempty,min=1,max=100"`
	PictureURL  *string `json:"picture_url" validate:"omitempty,url"`
}

// CategoryService manages the category tree's leaves.
type CategoryService struct {
	categories repository.CategoryRepository
	refs       *integrity.Enforcer
	validate   *validation.Validator
	logger     *slog.Logger
}

func NewCategoryService(categories repository.CategoryRepository, refs *integrity.Enforcer, validate *validation.Validator, logger *slog.Logger) *CategoryService {
	return &CategoryService{categories: categories, refs: refs, validate: validate, logger: logger}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id xid.ID) (*model.Category, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*model.Category, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	c := &model.Category{CategoryName: in.CategoryName, MainCategory: in.MainCategory}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("service/categories: creating %q: %w", in.CategoryName, err)
	}
	s.logger.Info("category created", slog.String("categoryID", c.ID.String()))
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, id xid.ID, patch integrity.Patch) (*model.Category, error) {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var p categoryPatch
	if err := patch.Decode(&p); err != nil {
		return nil, apperror.ValidationFailed("body", fmt.Sprintf("Invalid category data: %s", err))
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}
	if p.CategoryName != nil {
		c.CategoryName = *p.CategoryName
	}
	if p.MainCategory != nil {
		c.MainCategory = *p.MainCategory
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("service/categories: updating %s: %w", id, err)
	}
	return c, nil
}

// Delete removes a category no product belongs to.
func (s *CategoryService) Delete(ctx context.Context, id xid.ID) error {
	if err := s.refs.CheckDelete(ctx, model.Categories, id); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("category deleted", slog.String("categoryID", id.String()))
	return nil
}

// ProductService manages products. Every product points at an existing
// category.
type ProductService struct {
	products repository.ProductRepository
	refs     *integrity.Enforcer
	validate *validation.Validator
	logger   *slog.Logger
}

func NewProductService(products repository.ProductRepository, refs *integrity.Enforcer, validate *validation.Validator, logger *slog.Logger) *ProductService {
	return &ProductService{products: products, refs: refs, validate: validate, logger: logger}
}

func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	return s.products.List(ctx)
}

func (s *ProductService) Get(ctx context.Context, id xid.ID) (*model.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	categoryID, _ := xid.FromString(in.CategoryID)
	if err := s.refs.CheckReference(ctx, "category_id", model.Categories, categoryID); err != nil {
		return nil, err
	}

	p := &model.Product{CategoryID: categoryID, ProductName: in.ProductName, PictureURL: in.PictureURL}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("service/products: creating %q: %w", in.ProductName, err)
	}
	s.logger.Info("product created", slog.String("productID", p.ID.String()))
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id xid.ID, patch integrity.Patch) (*model.Product, error) {
	prod, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var p productPatch
	if err := patch.Decode(&p); err != nil {
		return nil, apperror.ValidationFailed("body", fmt.Sprintf("Invalid product data: %s", err))
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, err
	}

	if p.CategoryID != nil {
		categoryID, _ := xid.FromString(*p.CategoryID)
		if err := s.refs.CheckReference(ctx, "category_id", model.Categories, categoryID); err != nil {
			return nil, err
		}
		prod.CategoryID = categoryID
	}
	if p.ProductName != nil {
		prod.ProductName = *p.ProductName
	}
	if p.PictureURL != nil {
		prod.PictureURL = *p.PictureURL
	}
	if err := s.products.Update(ctx, prod); err != nil {
		return nil, fmt.Errorf("service/products: updating %s: %w", id, err)
	}
	return prod, nil
}

// Delete removes a product no offer refers to and reports how many products
// remain.
func (s *ProductService) Delete(ctx context.Context, id xid.ID) (int, error) {
	if err := s.refs.CheckDelete(ctx, model.Products, id); err != nil {
		return 0, err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return 0, err
	}
	s.logger.Info("product deleted", slog.String("productID", id.String()))

	rest, err := s.products.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("service/products: counting: %w", err)
	}
	return len(rest), nil
}
