package service

import (
	"errors"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrCartItemsNotFound = errors.New("cart has no items")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
)

// CartLine is a cart item priced against the current catalog
type CartLine struct {
	ItemID      uint    `json:"id"`
	ProductID   uint    `json:"product_id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	ResultPrice float64 `json:"result_price"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// CartView is the cart as returned to the client, with live prices and
// totals computed at read time
type CartView struct {
	CartID        uint       `json:"cart_id"`
	UserID        uint       `json:"user_id"`
	Items         []CartLine `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	TotalPrice    float64    `json:"total_price"`
}

type CartService interface {
	GetCart(userID uint) (*CartView, error)
	AddItem(userID, productID uint, quantity int) (*CartView, error)
	UpdateItem(userID, itemID uint, quantity int) (*CartView, error)
	RemoveItem(userID, itemID uint) (*CartView, error)
	ClearCart(userID uint) error
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
	}
}

// getOrCreateCart returns the user's cart, creating an empty one on first use
func (s *cartService) getOrCreateCart(userID uint) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	logger.Debug("Creating cart for user on first access", map[string]interface{}{
		"user_id": userID,
	})

	cart = &model.Cart{UserID: userID}
	if err := s.cartRepo.Create(cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// findCart returns the user's existing cart; unlike getOrCreateCart it never
// creates one, so mutations on a cart that was never touched fail loudly
func (s *cartService) findCart(userID uint) (*model.Cart, error) {
	cart, err := s.cartRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cart not found for user", map[string]interface{}{
				"user_id": userID,
			})
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return cart, nil
}

// buildView prices cart items against the current catalog. Items whose
// product was removed stay in the cart but price as zero.
func buildView(cart *model.Cart) *CartView {
	view := &CartView{
		CartID: cart.ID,
		UserID: cart.UserID,
		Items:  make([]CartLine, 0, len(cart.Items)),
	}

	for _, item := range cart.Items {
		line := CartLine{
			ItemID:    item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		}
		if item.Product != nil {
			line.Title = item.Product.Title
			line.Price = item.Product.Price
			if line.ImageURL == "" {
				line.ImageURL = item.Product.ImageURL
			}
		}
		line.ResultPrice = line.Price * float64(line.Quantity)

		view.Items = append(view.Items, line)
		view.TotalQuantity += line.Quantity
		view.TotalPrice += line.ResultPrice
	}

	return view
}

func (s *cartService) GetCart(userID uint) (*CartView, error) {
	logger.Debug("Fetching cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.getOrCreateCart(userID)
	if err != nil {
		return nil, err
	}

	return buildView(cart), nil
}

func (s *cartService) AddItem(userID, productID uint, quantity int) (*CartView, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	})

	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Add to cart failed: product not found", map[string]interface{}{
				"product_id": productID,
			})
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	cart, err := s.getOrCreateCart(userID)
	if err != nil {
		return nil, err
	}

	// Same product twice merges into one line
	existing, err := s.cartRepo.FindItemByCartAndProduct(cart.ID, productID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existing != nil {
		existing.Quantity += quantity
		if err := s.cartRepo.UpdateItem(existing); err != nil {
			return nil, err
		}
	} else {
		item := &model.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
			ImageURL:  product.ImageURL,
		}
		if err := s.cartRepo.CreateItem(item); err != nil {
			return nil, err
		}
	}

	logger.Info("Item added to cart", map[string]interface{}{
		"user_id":    userID,
		"product_id": productID,
	})

	return s.GetCart(userID)
}

func (s *cartService) UpdateItem(userID, itemID uint, quantity int) (*CartView, error) {
	logger.Info("Updating cart item", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": itemID,
		"quantity":     quantity,
	})

	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.findCart(userID)
	if err != nil {
		return nil, err
	}

	item, err := s.cartRepo.FindItemByID(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	if item.CartID != cart.ID {
		logger.Warn("Cart item belongs to a different cart", map[string]interface{}{
			"user_id":      userID,
			"cart_item_id": itemID,
		})
		return nil, ErrCartItemNotFound
	}

	item.Quantity = quantity
	if err := s.cartRepo.UpdateItem(item); err != nil {
		return nil, err
	}

	return s.GetCart(userID)
}

func (s *cartService) RemoveItem(userID, itemID uint) (*CartView, error) {
	logger.Info("Removing cart item", map[string]interface{}{
		"user_id":      userID,
		"cart_item_id": itemID,
	})

	cart, err := s.findCart(userID)
	if err != nil {
		return nil, err
	}

	item, err := s.cartRepo.FindItemByID(itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	if item.CartID != cart.ID {
		return nil, ErrCartItemNotFound
	}

	if err := s.cartRepo.DeleteItem(item.ID); err != nil {
		return nil, err
	}

	return s.GetCart(userID)
}

func (s *cartService) ClearCart(userID uint) error {
	logger.Info("Clearing cart", map[string]interface{}{
		"user_id": userID,
	})

	cart, err := s.findCart(userID)
	if err != nil {
		return err
	}

	deleted, err := s.cartRepo.DeleteItemsByCartID(cart.ID)
	if err != nil {
		return err
	}
	if deleted == 0 {
		logger.Warn("Clear cart failed: cart already empty", map[string]interface{}{
			"user_id": userID,
		})
		return ErrCartItemsNotFound
	}

	logger.Info("Cart cleared", map[string]interface{}{
		"user_id": userID,
		"removed": deleted,
	})
	return nil
}
