package service

import (
	"testing"

	"github.com/avolkau/lavka-backend/internal/app/model"
	"github.com/avolkau/lavka-backend/internal/app/repository"
	"github.com/avolkau/lavka-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartServiceTest(t *testing.T) (CartService, *model.User, *model.Product, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cartRepo := repository.NewCartRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	cartService := NewCartService(cartRepo, productRepo)

	// Create test user
	user := &model.User{
		Email:        "test@example.com",
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         model.RoleUser,
	}
	testDB.Create(user)

	// Create test category and product
	category := &model.Category{Title: "Juices", Slug: "juices"}
	testDB.Create(category)

	product := &model.Product{
		Title:      "Orange Juice",
		Price:      150,
		CategoryID: category.ID,
	}
	testDB.Create(product)

	return cartService, user, product, testDB
}

func TestCartService_GetCart_CreatesEmptyCartOnFirstAccess(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	view, err := cartService.GetCart(user.ID)
	require.NoError(t, err)
	assert.NotZero(t, view.CartID)
	assert.Equal(t, user.ID, view.UserID)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.TotalQuantity)
	assert.Equal(t, float64(0), view.TotalPrice)
}

func TestCartService_AddItem(t *testing.T) {
	cartService, user, product, _ := setupCartServiceTest(t)

	view, err := cartService.AddItem(user.ID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, product.ID, view.Items[0].ProductID)
	assert.Equal(t, "Orange Juice", view.Items[0].Title)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, float64(300), view.Items[0].ResultPrice)
	assert.Equal(t, 2, view.TotalQuantity)
	assert.Equal(t, float64(300), view.TotalPrice)
}

func TestCartService_AddItem_MergesSameProduct(t *testing.T) {
	cartService, user, product, _ := setupCartServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 1)
	require.NoError(t, err)

	view, err := cartService.AddItem(user.ID, product.ID, 2)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, float64(450), view.TotalPrice)
}

func TestCartService_AddItem_ProductNotFound(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItem(user.ID, 999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartService_AddItem_InvalidQuantity(t *testing.T) {
	cartService, user, product, _ := setupCartServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCartService_UpdateItem(t *testing.T) {
	cartService, user, product, _ := setupCartServiceTest(t)

	view, err := cartService.AddItem(user.ID, product.ID, 1)
	require.NoError(t, err)
	itemID := view.Items[0].ItemID

	view, err = cartService.UpdateItem(user.ID, itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, float64(750), view.TotalPrice)
}

func TestCartService_UpdateItem_NotFound(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	_, err := cartService.GetCart(user.ID)
	require.NoError(t, err)

	_, err = cartService.UpdateItem(user.ID, 999, 2)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_UpdateItem_NoCart(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	_, err := cartService.UpdateItem(user.ID, 999, 2)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestCartService_UpdateItem_OtherUsersItem(t *testing.T) {
	cartService, user, product, testDB := setupCartServiceTest(t)

	other := &model.User{
		Email:        "other@example.com",
		PasswordHash: "hash",
		Name:         "Other User",
		Role:         model.RoleUser,
	}
	testDB.Create(other)

	view, err := cartService.AddItem(other.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = cartService.GetCart(user.ID)
	require.NoError(t, err)

	_, err = cartService.UpdateItem(user.ID, view.Items[0].ItemID, 2)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_RemoveItem_NoCart(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	_, err := cartService.RemoveItem(user.ID, 999)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestCartService_RemoveItem(t *testing.T) {
	cartService, user, product, _ := setupCartServiceTest(t)

	view, err := cartService.AddItem(user.ID, product.ID, 1)
	require.NoError(t, err)

	view, err = cartService.RemoveItem(user.ID, view.Items[0].ItemID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCartService_ClearCart(t *testing.T) {
	cartService, user, product, _ := setupCartServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 2)
	require.NoError(t, err)

	err = cartService.ClearCart(user.ID)
	require.NoError(t, err)

	view, err := cartService.GetCart(user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
}

func TestCartService_ClearCart_Empty(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	_, err := cartService.GetCart(user.ID)
	require.NoError(t, err)

	err = cartService.ClearCart(user.ID)
	assert.ErrorIs(t, err, ErrCartItemsNotFound)
}

func TestCartService_ClearCart_NoCart(t *testing.T) {
	cartService, user, _, _ := setupCartServiceTest(t)

	err := cartService.ClearCart(user.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestCartService_GetCart_DeletedProductPricesAsZero(t *testing.T) {
	cartService, user, product, testDB := setupCartServiceTest(t)

	_, err := cartService.AddItem(user.ID, product.ID, 2)
	require.NoError(t, err)

	require.NoError(t, testDB.Delete(&model.Product{}, product.ID).Error)

	view, err := cartService.GetCart(user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "", view.Items[0].Title)
	assert.Equal(t, float64(0), view.Items[0].Price)
	assert.Equal(t, float64(0), view.TotalPrice)
}
