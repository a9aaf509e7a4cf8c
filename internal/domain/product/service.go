package product

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/example/meatshop-orders/internal/cache"
	"github.com/example/meatshop-orders/internal/infrastructure/store"
	"github.com/example/meatshop-orders/internal/model"
	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidName     = errors.New("name is required")
	ErrInvalidStock    = errors.New("stock must not be negative")
	ErrDuplicateID     = errors.New("product id already exists")
)

type CreateProduct struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	Price     int64             `json:"price"`
	Unit      string            `json:"unit,omitempty"`
	Stock     int               `json:"stock"`
	MinStock  int               `json:"minStock"`
	Tags      []string          `json:"tags,omitempty"`
	Images    []string          `json:"images,omitempty"`
	Nutrition map[string]string `json:"nutrition,omitempty"`
}

// Service serves product reads through the cache. Stock changes go
// through the inventory ledger, which invalidates the same keys.
type Service struct {
	store  store.ProductStore
	cache  cache.Cache
	logger *slog.Logger
}

func NewService(s store.ProductStore, c cache.Cache, logger *slog.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{store: s, cache: c, logger: logger.With("component", "product")}
}

func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	var cached model.Product
	if ok, err := s.cache.Get(ctx, cache.ProductKey(id), &cached); err != nil {
		s.logger.Warn("product cache read failed", "product_id", id, "error", err)
	} else if ok {
		return &cached, nil
	}

	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cache.ProductKey(id), p); err != nil {
		s.logger.Warn("product cache write failed", "product_id", id, "error", err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*model.Product, error) {
	key := cache.ProductListKey(activeOnly)
	var cached []*model.Product
	if ok, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn("product list cache read failed", "error", err)
	} else if ok {
		return cached, nil
	}

	products, err := s.store.ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, products); err != nil {
		s.logger.Warn("product list cache write failed", "error", err)
	}
	return products, nil
}

func (s *Service) Create(ctx context.Context, cmd CreateProduct) (*model.Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if cmd.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	if cmd.Stock < 0 || cmd.MinStock < 0 {
		return nil, ErrInvalidStock
	}

	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		id = uuid.New().String()
	}
	p := &model.Product{
		ID:        id,
		Name:      name,
		Price:     cmd.Price,
		Unit:      cmd.Unit,
		Stock:     cmd.Stock,
		MinStock:  cmd.MinStock,
		IsActive:  true,
		Tags:      model.StringList(cmd.Tags),
		Images:    model.StringList(cmd.Images),
		Nutrition: model.Nutrition(cmd.Nutrition),
	}
	if p.Tags == nil {
		p.Tags = model.StringList{}
	}
	if p.Images == nil {
		p.Images = model.StringList{}
	}
	if p.Nutrition == nil {
		p.Nutrition = model.Nutrition{}
	}

	if err := s.store.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateID
		}
		return nil, err
	}
	if err := s.cache.DeletePrefix(ctx, cache.ProductsPrefix); err != nil {
		s.logger.Warn("failed to invalidate product listings", "error", err)
	}

	s.logger.Info("product created", "product_id", p.ID, "stock", p.Stock)
	return p, nil
}
