package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/srrfarms/storefront-api/api/middleware"
	"github.com/srrfarms/storefront-api/internal/cart"
	"github.com/srrfarms/storefront-api/internal/checkout"
	"github.com/srrfarms/storefront-api/internal/orders"
	"github.com/srrfarms/storefront-api/internal/payments"
	"github.com/srrfarms/storefront-api/internal/products"
	"github.com/srrfarms/storefront-api/internal/users"
	"github.com/srrfarms/storefront-api/pkg/apiclient"
	"github.com/srrfarms/storefront-api/pkg/auth"
	pkgcheckout "github.com/srrfarms/storefront-api/pkg/checkout"
	"github.com/srrfarms/storefront-api/pkg/config"
	"github.com/srrfarms/storefront-api/pkg/db/dbtest"
	"github.com/srrfarms/storefront-api/pkg/db/models"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubSessions struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (s *stubSessions) HasSession(_ context.Context, accessID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.revoked[accessID], nil
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revoked == nil {
		s.revoked = map[string]bool{}
	}
	s.revoked[accessID] = true
	return nil
}

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (l *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int64{}
	}
	l.counts[scope]++
	return l.counts[scope] <= limit, l.counts[scope], nil
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string]string
}

func (m *memoryObjects) Upload(_ context.Context, object, contentType string, body io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string]string{}
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	m.objects[object] = contentType
	return nil
}

func (m *memoryObjects) DeleteObject(_ context.Context, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, object)
	return nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[key] = value.(string)
	return nil
}

func (m *memoryIdempotency) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	_, exists := m.data[key]
	m.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "srr:idempotency:" + scope + ":" + id
}

type harness struct {
	t       *testing.T
	conn    *gorm.DB
	cfg     *config.Config
	handler http.Handler
	objects *memoryObjects
}

func newHarness(t *testing.T, rateLimit int) *harness {
	t.Helper()
	client := dbtest.Open(t)
	conn := client.DB()

	cfg := &config.Config{
		App:       config.AppConfig{Env: "dev"},
		JWT:       config.JWTConfig{Secret: "test-secret", Issuer: "srr-farms", ExpirationMinutes: 60},
		RateLimit: config.RateLimitConfig{Window: time.Minute, Limit: rateLimit},
		Uploads:   config.UploadConfig{MaxUploadMB: 1},
	}

	productRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	userRepo := users.NewRepository(conn)

	productSvc, err := products.NewService(productRepo)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cartRepo, productRepo, client, nil, time.Second)
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orderRepo, client)
	require.NoError(t, err)
	checkoutSvc, err := checkout.NewService(checkout.Config{
		Pricing: pkgcheckout.Pricing{ShippingFee: 50, TaxRate: decimal.RequireFromString("0.05")},
	}, checkout.Deps{
		Tx:       client,
		Users:    userRepo,
		Carts:    cartRepo,
		Products: productRepo,
		Orders:   orderRepo,
	})
	require.NoError(t, err)
	objects := &memoryObjects{}
	paymentSvc, err := payments.NewService(payments.Config{MaxBytes: cfg.Uploads.MaxBytes()}, objects, checkoutSvc, nil)
	require.NoError(t, err)
	profiles, err := users.NewProfileService(userRepo, nil, time.Minute, nil)
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:      cfg,
		DB:          stubPinger{},
		Redis:       stubPinger{},
		RateLimiter: &countingLimiter{},
		Idempotency: &memoryIdempotency{},
		Sessions:    &stubSessions{},
		Products:    productSvc,
		Cart:        cartSvc,
		Checkout:    checkoutSvc,
		Orders:      orderSvc,
		Payments:    paymentSvc,
		Profiles:    profiles,
	})
	return &harness{t: t, conn: conn, cfg: cfg, handler: handler, objects: objects}
}

func (h *harness) token(user *models.User) string {
	h.t.Helper()
	token, err := auth.MintAccessToken(h.cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID:  user.ID,
		IsAdmin: user.IsAdmin,
		JTI:     uuid.NewString(),
	})
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.doWithHeaders(method, path, token, body, nil)
}

func (h *harness) doWithHeaders(method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func (h *harness) orderCount() int64 {
	h.t.Helper()
	var n int64
	require.NoError(h.t, h.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, dest any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	if dest != nil {
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, 100)

	resp := h.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"database":"ok"`)
}

func TestCatalogueIsPublicAndHidesInactiveProducts(t *testing.T) {
	h := newHarness(t, 100)
	active := dbtest.MustCreateProduct(t, h.conn, "Alphonso Mango", 500, 3)
	hidden := dbtest.MustCreateProduct(t, h.conn, "Hidden Guava", 100, 3)
	require.NoError(t, h.conn.Model(hidden).Update("is_active", false).Error)

	resp := h.do(http.MethodGet, "/api/products?search=mango", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list products.ProductList
	decode(t, resp, &list)
	require.Len(t, list.Products, 1)
	assert.Equal(t, active.ID, list.Products[0].ID)

	resp = h.do(http.MethodGet, "/api/products/"+hidden.ID.String(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = h.do(http.MethodGet, "/api/products/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h := newHarness(t, 100)
	for _, path := range []string{"/api/cart", "/api/orders", "/api/auth/me"} {
		resp := h.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Code, path)
		env := decode(t, resp, nil)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	}
}

func TestCartToOrderFlow(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	stranger := dbtest.MustCreateUser(t, h.conn, false)
	product := dbtest.MustCreateProduct(t, h.conn, "Banganapalli", 500, 5)
	token := h.token(shopper)

	resp := h.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var view cart.CartView
	decode(t, resp, &view)
	assert.Equal(t, int64(1000), view.Subtotal)
	assert.Equal(t, 2, view.ItemCount)

	resp = h.do(http.MethodPost, "/api/orders", token, map[string]any{"payment_method": "cod", "notes": "ring twice"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var order orders.OrderDTO
	decode(t, resp, &order)
	assert.Equal(t, int64(1100), order.Total)
	assert.True(t, pkgcheckout.IsOrderNumber(order.OrderNumber))

	resp = h.do(http.MethodGet, "/api/cart", token, nil)
	decode(t, resp, &view)
	assert.Empty(t, view.Items)

	resp = h.do(http.MethodGet, "/api/orders", token, nil)
	var mine []orders.OrderDTO
	decode(t, resp, &mine)
	require.Len(t, mine, 1)

	resp = h.do(http.MethodGet, "/api/orders/"+order.ID.String(), h.token(stranger), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = h.do(http.MethodPost, "/api/orders", token, map[string]any{"payment_method": "cod"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "EMPTY_CART", decode(t, resp, nil).Error.Code)
}

func TestInsufficientStockIsReported(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	product := dbtest.MustCreateProduct(t, h.conn, "Last Sapota", 80, 1)
	token := h.token(shopper)

	resp := h.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	env := decode(t, resp, nil)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
	assert.Equal(t, float64(1), env.Error.Details["available"])
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	admin := dbtest.MustCreateUser(t, h.conn, true)
	product := dbtest.MustCreateProduct(t, h.conn, "Custard Apple", 150, 4)
	shopperToken := h.token(shopper)
	adminToken := h.token(admin)

	resp := h.do(http.MethodGet, "/api/orders/admin/stats", shopperToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	h.do(http.MethodPost, "/api/cart/items", shopperToken, map[string]any{"product_id": product.ID, "quantity": 1})
	resp = h.do(http.MethodPost, "/api/orders", shopperToken, map[string]any{"payment_method": "upi", "transaction_id": "TXN1"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var order orders.OrderDTO
	decode(t, resp, &order)

	resp = h.do(http.MethodGet, "/api/orders/admin/all?status=pending&search="+order.OrderNumber, adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var list orders.AdminOrderList
	decode(t, resp, &list)
	require.Len(t, list.Orders, 1)

	resp = h.do(http.MethodGet, "/api/orders/admin/all?status=lost", adminToken, nil)
	assert.Equal(t, "INVALID_STATUS", decode(t, resp, nil).Error.Code)

	resp = h.do(http.MethodPut, "/api/orders/"+order.ID.String()+"/payment", adminToken, map[string]any{"payment_status": "paid"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decode(t, resp, &order)
	assert.Equal(t, "confirmed", string(order.Status))

	resp = h.do(http.MethodPut, "/api/orders/"+order.ID.String()+"/status", adminToken, map[string]any{"status": "teleported"})
	assert.Equal(t, "INVALID_STATUS", decode(t, resp, nil).Error.Code)

	resp = h.do(http.MethodPut, "/api/orders/"+uuid.NewString()+"/status", adminToken, map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = h.do(http.MethodPut, "/api/orders/"+order.ID.String()+"/status", adminToken, map[string]any{"status": "shipped", "tracking_number": "IP123"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(http.MethodGet, "/api/orders/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var stats orders.Stats
	decode(t, resp, &stats)
	assert.Equal(t, int64(1), stats.TotalOrders)

	resp = h.do(http.MethodGet, "/api/orders/"+order.ID.String(), adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestAdminProductManagement(t *testing.T) {
	h := newHarness(t, 100)
	admin := dbtest.MustCreateUser(t, h.conn, true)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	adminToken := h.token(admin)

	resp := h.do(http.MethodPost, "/api/admin/products", h.token(shopper), map[string]any{"name": "Nope", "price": 1, "stock": 1})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = h.do(http.MethodPost, "/api/admin/products", adminToken, map[string]any{"name": "Jamun", "price": 250, "stock": 0})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created products.ProductDTO
	decode(t, resp, &created)
	assert.False(t, created.InStock)

	resp = h.do(http.MethodPatch, "/api/admin/products/"+created.ID.String(), adminToken, map[string]any{"stock": 40})
	require.Equal(t, http.StatusOK, resp.Code)
	var updated products.ProductDTO
	decode(t, resp, &updated)
	assert.Equal(t, 40, updated.Stock)

	resp = h.do(http.MethodPost, "/api/admin/products", adminToken, map[string]any{"name": "", "price": -1})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	token := h.token(shopper)

	resp := h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var me users.UserDTO
	decode(t, resp, &me)
	assert.Equal(t, shopper.Email, me.Email)

	resp = h.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = h.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRateLimitApplies(t *testing.T) {
	h := newHarness(t, 2)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	token := h.token(shopper)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/cart", token, nil).Code)
	}
	resp := h.do(http.MethodGet, "/api/cart", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode(t, resp, nil).Error.Code)

	// the public catalogue is not limited
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/products", "", nil).Code)
	}
}

func TestCreateUPIOrderMultipart(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	product := dbtest.MustCreateProduct(t, h.conn, "Ice Apple", 60, 10)
	token := h.token(shopper)
	h.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": 3})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("screenshot", "proof.png")
	require.NoError(t, err)
	_, err = part.Write(append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...))
	require.NoError(t, err)
	require.NoError(t, form.WriteField("transactionId", "UPI-778"))
	require.NoError(t, form.WriteField("shippingAddress", `{"line1":"1 Beach Rd","city":"Vizag","state":"AP","postal_code":"530001"}`))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/payments/create-upi-order", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var order orders.OrderDTO
	decode(t, resp, &order)
	assert.Equal(t, "upi", string(order.PaymentMethod))
	assert.Equal(t, "Vizag", order.ShippingAddress.City)
	require.NotNil(t, order.UPITransactionID)
	assert.Equal(t, "UPI-778", *order.UPITransactionID)
	require.Len(t, h.objects.objects, 1)
	for name, contentType := range h.objects.objects {
		assert.True(t, strings.HasPrefix(name, "payment-proofs/"+shopper.ID.String()+"/"))
		assert.Equal(t, "image/png", contentType)
	}
}

func TestPlaceOrderReplaysSameIdempotencyKey(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	product := dbtest.MustCreateProduct(t, h.conn, "Rasalu", 300, 5)
	token := h.token(shopper)
	h.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": 2})

	key := map[string]string{middleware.IdempotencyHeader: "checkout-1"}
	body := map[string]any{"payment_method": "cod"}

	first := h.doWithHeaders(http.MethodPost, "/api/orders", token, body, key)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	var placed orders.OrderDTO
	decode(t, first, &placed)

	again := h.doWithHeaders(http.MethodPost, "/api/orders", token, body, key)
	require.Equal(t, http.StatusCreated, again.Code, again.Body.String())
	assert.Equal(t, "true", again.Header().Get(middleware.IdempotentReplayHeader))
	var replayed orders.OrderDTO
	decode(t, again, &replayed)
	assert.Equal(t, placed.ID, replayed.ID)
	assert.Equal(t, int64(1), h.orderCount())

	resp := h.doWithHeaders(http.MethodPost, "/api/orders", token, map[string]any{"payment_method": "upi"}, key)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", decode(t, resp, nil).Error.Code)

	resp = h.doWithHeaders(http.MethodPost, "/api/orders", token, body, map[string]string{middleware.IdempotencyHeader: "checkout-2"})
	assert.Equal(t, "EMPTY_CART", decode(t, resp, nil).Error.Code)
	assert.Equal(t, int64(1), h.orderCount())
}

func TestClientRetryAfterLostCheckoutResponseGetsPlacedOrder(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	product := dbtest.MustCreateProduct(t, h.conn, "Panchadara Kalasa", 450, 3)
	token := h.token(shopper)
	h.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": 1})

	var dropped sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lose := false
		if r.Method == http.MethodPost && r.URL.Path == "/api/orders" {
			dropped.Do(func() { lose = true })
		}
		if !lose {
			h.handler.ServeHTTP(w, r)
			return
		}
		// run the checkout to completion, then drop the connection
		h.handler.ServeHTTP(httptest.NewRecorder(), r)
		conn, _, err := w.(http.Hijacker).Hijack()
		if assert.NoError(t, err) {
			_ = conn.Close()
		}
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL, apiclient.NewSession(token, shopper.ID.String(), false),
		apiclient.WithBackoff(time.Millisecond, 3))
	require.NoError(t, err)

	order, err := client.PlaceOrder(context.Background(), apiclient.PlaceOrderRequest{PaymentMethod: "cod"})
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.True(t, pkgcheckout.IsOrderNumber(order.OrderNumber))
	assert.Equal(t, int64(1), h.orderCount())
}

func TestCreateUPIOrderReplaysSameIdempotencyKey(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	product := dbtest.MustCreateProduct(t, h.conn, "Taati Munjalu", 40, 10)
	token := h.token(shopper)
	h.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": 2})

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("screenshot", "proof.png")
	require.NoError(t, err)
	_, err = part.Write(append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...))
	require.NoError(t, err)
	require.NoError(t, form.Close())
	payload := body.Bytes()

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/create-upi-order", bytes.NewReader(payload))
		req.Header.Set("Content-Type", form.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(middleware.IdempotencyHeader, "upi-1")
		resp := httptest.NewRecorder()
		h.handler.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	again := send()
	require.Equal(t, http.StatusCreated, again.Code, again.Body.String())
	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Equal(t, int64(1), h.orderCount())
	assert.Len(t, h.objects.objects, 1)
}

func TestCartRejectsOversizedQuantity(t *testing.T) {
	h := newHarness(t, 100)
	shopper := dbtest.MustCreateUser(t, h.conn, false)
	product := dbtest.MustCreateProduct(t, h.conn, "Guava", 30, 5)
	token := h.token(shopper)

	for _, qty := range []any{json.Number("9223372036854775807"), cart.MaxLineQuantity + 1} {
		resp := h.do(http.MethodPost, "/api/cart/items", token, map[string]any{"product_id": product.ID, "quantity": qty})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode(t, resp, nil).Error.Code)
	}

	resp := h.do(http.MethodGet, "/api/cart", token, nil)
	var view cart.CartView
	decode(t, resp, &view)
	assert.Empty(t, view.Items)
}
