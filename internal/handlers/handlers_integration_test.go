package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cardapio/internal/cart"
	"cardapio/internal/checkout"
	"cardapio/internal/handlers"
	"cardapio/internal/kv"
	"cardapio/internal/middleware"
	"cardapio/internal/models"
	"cardapio/internal/repositories"
	"cardapio/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "test_jwt_secret"

// setupApp wires every handler over an in-memory SQLite database and an in-memory cart store.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repositories.AutoMigrate(db))

	// Initialize Repositories
	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	couponRepo := repositories.NewGORMCouponRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	// Initialize Services
	productService := services.NewProductService(productRepo, categoryRepo)
	couponService := services.NewCouponService(couponRepo, nil)
	orderService := services.NewOrderService(orderRepo, productRepo, couponService, nil, nil)
	authService := services.NewAuthService(userRepo, testJWTSecret, 0)

	store := kv.NewMemoryStore()
	sessions := cart.NewSessions(store, couponService, nil)
	local := checkout.NewLocalAttempt(kv.Namespace(store, "checkout"))
	submitter := checkout.NewSubmitter(nil, checkout.NewServiceAttempt(orderService), local)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService, nil)
	productHandler := handlers.NewProductHandler(productService, nil)
	categoryHandler := handlers.NewCategoryHandler(productService, nil)
	couponHandler := handlers.NewCouponHandler(couponService, nil)
	orderHandler := handlers.NewOrderHandler(orderService, submitter, local, nil)
	cartHandler := handlers.NewCartHandler(sessions, productService, checkout.New(submitter, nil), nil)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterPublicRoutes(apiV1)
	couponHandler.RegisterPublicRoutes(apiV1)
	orderHandler.RegisterPublicRoutes(apiV1)
	cartHandler.RegisterRoutes(apiV1)

	// Protected routes (require JWT authentication)
	admin := apiV1.Group("/admin", middleware.AuthRequired(authService, nil))
	productHandler.RegisterRoutes(admin)
	categoryHandler.RegisterRoutes(admin)
	couponHandler.RegisterRoutes(admin)
	orderHandler.RegisterRoutes(admin)

	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, token string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "owner",
		"email":    "owner@example.com",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "owner",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	decode(t, resp, &loginResp)
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func seedMenu(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	products := repositories.NewGORMProductRepository(db)
	require.NoError(t, products.Create(ctx, &models.Product{
		ID:           "x-burger",
		RestaurantID: "r1",
		Name:         "X-Burger",
		Price:        30,
		Available:    true,
		OptionGroups: []models.OptionGroup{{
			Name:     "Size",
			Required: true,
			Options:  []models.Option{{Name: "Regular"}, {Name: "Large", Price: 5}},
		}},
	}))
	require.NoError(t, products.Create(ctx, &models.Product{ID: "soda", RestaurantID: "r2", Name: "Soda", Price: 6, Available: true}))
	require.NoError(t, repositories.NewGORMCouponRepository(db).Create(ctx, &models.Coupon{
		RestaurantID:  "r1",
		Code:          "DEZ",
		DiscountType:  models.DiscountFixed,
		DiscountValue: 10,
		MinOrderValue: 50,
		Active:        true,
	}))
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t)
	token := login(t, app)

	// Anonymous sign-up is closed once the first admin exists
	resp := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "intruder",
		"email":    "intruder@example.com",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "intruder",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// An admin can add another admin
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "manager",
		"email":    "manager@example.com",
		"password": "password123",
	}, token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// Duplicate registration
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "owner",
		"email":    "other@example.com",
		"password": "password123",
	}, token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Wrong password
	resp = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "owner",
		"password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestProductEndpointsWithoutAuth(t *testing.T) {
	app, _ := setupApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/admin/products?restaurant_id=r1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"restaurant_id": "r1",
		"name":          "Unauthorized Product",
		"price":         10.0,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestProductEndpointsWithAuth(t *testing.T) {
	app, _ := setupApp(t)
	token := login(t, app)

	// --- Category ---
	resp := doJSON(t, app, http.MethodPost, "/api/v1/admin/categories", map[string]interface{}{
		"restaurant_id": "r1",
		"name":          "Lanches",
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var category models.Category
	decode(t, resp, &category)
	require.NotEmpty(t, category.ID)

	// --- Create ---
	resp = doJSON(t, app, http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"restaurant_id": "r1",
		"category_id":   category.ID,
		"name":          "Misto Quente",
		"price":         14.5,
		"available":     true,
	}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Product
	decode(t, resp, &created)
	assert.NotEmpty(t, created.ID)

	// Invalid body
	resp = doJSON(t, app, http.MethodPost, "/api/v1/admin/products", map[string]interface{}{
		"restaurant_id": "r1",
		"name":          "X",
		"price":         -1,
	}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// --- Public menu ---
	resp = doJSON(t, app, http.MethodGet, "/api/v1/restaurants/r1/menu", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var menu models.Menu
	decode(t, resp, &menu)
	assert.Len(t, menu.Categories, 1)
	require.Len(t, menu.Products, 1)
	assert.Equal(t, "Misto Quente", menu.Products[0].Name)

	// --- Update ---
	resp = doJSON(t, app, http.MethodPut, "/api/v1/admin/products/"+created.ID, map[string]interface{}{
		"restaurant_id": "r1",
		"category_id":   category.ID,
		"name":          "Misto Quente Duplo",
		"price":         19.9,
		"available":     false,
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Product
	decode(t, resp, &updated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Misto Quente Duplo", updated.Name)

	// Unavailable products leave the public menu
	resp = doJSON(t, app, http.MethodGet, "/api/v1/restaurants/r1/menu", nil, "")
	decode(t, resp, &menu)
	assert.Empty(t, menu.Products)

	// --- Delete ---
	resp = doJSON(t, app, http.MethodDelete, "/api/v1/admin/products/"+created.ID, nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deleteResp map[string]string
	decode(t, resp, &deleteResp)
	assert.Contains(t, deleteResp["message"], "deleted successfully")

	resp = doJSON(t, app, http.MethodGet, "/api/v1/admin/products/"+created.ID, nil, token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCartCheckoutFlow(t *testing.T) {
	app, db := setupApp(t)
	seedMenu(t, db)
	base := "/api/v1/sessions/s1/cart"

	// Missing required option
	resp := doJSON(t, app, http.MethodPost, base+"/items", map[string]interface{}{
		"product_id": "x-burger",
		"quantity":   1,
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Same option twice
	resp = doJSON(t, app, http.MethodPost, base+"/items", map[string]interface{}{
		"product_id": "x-burger",
		"quantity":   1,
		"selected_options": []map[string]interface{}{
			{"group_name": "Size", "option": map[string]interface{}{"name": "Large"}},
			{"group_name": "Size", "option": map[string]interface{}{"name": "Large"}},
		},
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, base+"/items", map[string]interface{}{
		"product_id": "x-burger",
		"quantity":   2,
		"selected_options": []map[string]interface{}{
			{"group_name": "Size", "option": map[string]interface{}{"name": "Large", "price": 0}},
		},
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap cart.Snapshot
	decode(t, resp, &snap)
	assert.Equal(t, "r1", snap.RestaurantID)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 5.0, snap.Lines[0].SelectedOptions[0].Option.Price)
	assert.Equal(t, 70.0, snap.TotalPrice)
	lineKey := snap.Lines[0].Key

	// Unknown coupon is refused with its reason
	resp = doJSON(t, app, http.MethodPost, base+"/coupon", map[string]string{"code": "NOPE"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, base, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &snap)
	assert.Empty(t, snap.CouponCode)
	assert.Nil(t, snap.Coupon)

	resp = doJSON(t, app, http.MethodPost, base+"/coupon", map[string]string{"code": "DEZ"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &snap)
	require.NotNil(t, snap.Coupon)
	assert.Equal(t, "DEZ", snap.Coupon.Code)
	assert.Equal(t, 10.0, snap.Discount)
	assert.Equal(t, 60.0, snap.FinalPrice)

	resp = doJSON(t, app, http.MethodPatch, base+"/lines", map[string]interface{}{
		"key":      lineKey,
		"quantity": 3,
		"notes":    "no pickles",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &snap)
	assert.Equal(t, 3, snap.TotalItems)
	assert.Equal(t, "no pickles", snap.Lines[0].Notes)
	assert.Equal(t, 95.0, snap.FinalPrice)

	// Invalid customer details
	resp = doJSON(t, app, http.MethodPost, base+"/checkout", map[string]string{
		"customer_name":   "Ana",
		"delivery_method": "delivery",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	details := map[string]string{
		"customer_name":   "Ana",
		"customer_phone":  "11988887777",
		"delivery_method": "delivery",
		"address":         "Rua das Flores, 10",
	}
	resp = doJSON(t, app, http.MethodPost, base+"/checkout", details, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result checkout.Result
	decode(t, resp, &result)
	assert.True(t, result.SavedInDB)
	assert.Equal(t, checkout.TierService, result.Tier)
	require.NotNil(t, result.Order)
	assert.Equal(t, 105.0, result.Order.Subtotal)
	assert.Equal(t, 95.0, result.Order.Total)
	assert.Equal(t, "DEZ", result.Order.CouponCode)

	// The cart is emptied after checkout
	resp = doJSON(t, app, http.MethodGet, base, nil, "")
	decode(t, resp, &snap)
	assert.Empty(t, snap.Lines)
	assert.Nil(t, snap.Coupon)

	resp = doJSON(t, app, http.MethodPost, base+"/checkout", details, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// --- Admin view of the stored order ---
	token := login(t, app)
	resp = doJSON(t, app, http.MethodGet, "/api/v1/admin/orders?restaurant_id=r1", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []models.Order
	decode(t, resp, &orders)
	require.Len(t, orders, 1)
	assert.Equal(t, result.Order.ID, orders[0].ID)

	resp = doJSON(t, app, http.MethodPatch, "/api/v1/admin/orders/"+result.Order.ID+"/status", map[string]string{"status": "preparing"}, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPatch, "/api/v1/admin/orders/"+result.Order.ID+"/status", map[string]string{"status": "teleported"}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/api/v1/admin/customers?restaurant_id=r1", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var customers []models.Customer
	decode(t, resp, &customers)
	require.Len(t, customers, 1)
	assert.Equal(t, "11988887777", customers[0].Phone)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/admin/orders/pending", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pending []models.Order
	decode(t, resp, &pending)
	assert.Empty(t, pending)
}

func TestCartSwitchingRestaurantEmptiesCart(t *testing.T) {
	app, db := setupApp(t)
	seedMenu(t, db)
	base := "/api/v1/sessions/s2/cart"

	resp := doJSON(t, app, http.MethodPost, base+"/items", map[string]interface{}{
		"product_id": "x-burger",
		"quantity":   1,
		"selected_options": []map[string]interface{}{
			{"group_name": "Size", "option": map[string]interface{}{"name": "Regular"}},
		},
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, base+"/items", map[string]interface{}{"product_id": "soda", "quantity": 2}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap cart.Snapshot
	decode(t, resp, &snap)
	assert.Equal(t, "r2", snap.RestaurantID)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, "soda", snap.Lines[0].Product.ID)
	assert.Equal(t, 12.0, snap.TotalPrice)

	resp = doJSON(t, app, http.MethodDelete, base+"/items/soda", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &snap)
	assert.Empty(t, snap.Lines)
	assert.Equal(t, 0.0, snap.FinalPrice)
}

func TestPublicOrderIntake(t *testing.T) {
	app, db := setupApp(t)
	seedMenu(t, db)

	order := map[string]interface{}{
		"restaurant_id":   "r2",
		"customer_name":   "Bruno",
		"customer_phone":  "21977776666",
		"delivery_method": "pickup",
		"items":           []map[string]interface{}{{"product_id": "soda", "quantity": 3, "unit_price": 0.01}},
	}

	for path, source := range map[string]string{"/api/v1/orders": handlers.SourcePrimary, "/api/v1/public/orders": handlers.SourceAlternate} {
		resp := doJSON(t, app, http.MethodPost, path, order, "")
		require.Equal(t, http.StatusCreated, resp.StatusCode, path)
		var created models.Order
		decode(t, resp, &created)
		assert.Equal(t, 18.0, created.Total, "client prices are ignored")
		assert.Equal(t, source, created.Source)
	}

	delete(order, "customer_phone")
	resp := doJSON(t, app, http.MethodPost, "/api/v1/orders", order, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestValidateCouponEndpoint(t *testing.T) {
	app, db := setupApp(t)
	seedMenu(t, db)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/coupons/validate", map[string]interface{}{
		"code": "DEZ", "restaurant_id": "r1", "order_value": 80,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result cart.CouponResult
	decode(t, resp, &result)
	assert.Equal(t, 10.0, result.Discount)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/coupons/validate", map[string]interface{}{
		"code": "DEZ", "restaurant_id": "r1", "order_value": 20,
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "minimum order value for this coupon is 50.00", body["message"])
}
