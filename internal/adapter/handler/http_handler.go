package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/domain"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/core/service"
	"github.com/sammieeblaque/breet-shopping-cart-test/internal/obs"
)

type HTTPHandler struct {
	carts    *service.CartService
	products *service.ProductService
	users    *service.UserService
}

func NewHTTPHandler(carts *service.CartService, products *service.ProductService, users *service.UserService) *HTTPHandler {
	return &HTTPHandler{carts: carts, products: products, users: users}
}

// Register mounts all API routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.Handle("GET /metrics", obs.MetricsHandler())

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("GET /api/users/{id}", h.GetUser)

	mux.HandleFunc("GET /api/carts/{userID}", h.GetCart)
	mux.HandleFunc("POST /api/carts/{userID}/items", h.AddToCart)
	mux.HandleFunc("PUT /api/carts/{userID}/items/{productID}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/carts/{userID}/items/{productID}", h.RemoveCartItem)
	mux.HandleFunc("DELETE /api/carts/{userID}/items", h.ClearCart)
	mux.HandleFunc("POST /api/carts/{userID}/checkout", h.Checkout)
	mux.HandleFunc("GET /api/carts/{userID}/orders", h.OrderHistory)
}

type cartItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
}

type cartResponse struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	Items       []cartItemResponse `json:"items"`
	Settled     bool               `json:"settled"`
	SettledAt   *time.Time         `json:"settled_at,omitempty"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

func toCartResponse(cart *domain.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Name:      item.Name,
		})
	}
	return cartResponse{
		ID:          cart.ID,
		UserID:      cart.UserID,
		Items:       items,
		Settled:     cart.Settled,
		SettledAt:   cart.SettledAt,
		TotalAmount: cart.TotalAmount,
	}
}

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" || req.Price.IsNegative() || req.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid fields"})
		return
	}

	product, err := h.products.Create(r.Context(), req.Name, req.Description, req.Price, req.Stock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoi(q.Get("page"), 1)
	limit := atoi(q.Get("limit"), 10)

	list, err := h.products.FindAll(r.Context(), page, limit, q.Get("sortBy"), q.Get("order"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.FindOne(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *HTTPHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing required fields"})
		return
	}

	user, err := h.users.Create(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindOne(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.GetOrCreateCart(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ProductID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing or invalid fields"})
		return
	}

	cart, err := h.carts.AddToCart(r.Context(), r.PathValue("userID"), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *HTTPHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quantity must be positive"})
		return
	}

	cart, err := h.carts.UpdateItem(r.Context(), r.PathValue("userID"), r.PathValue("productID"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *HTTPHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), r.PathValue("userID"), r.PathValue("productID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.ClearCart(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Checkout(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

func (h *HTTPHandler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	orders, err := h.carts.OrderHistory(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]cartResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toCartResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, responses)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, service.ErrInsufficientStock):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, service.ErrEmptyCart):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrLockUnavailable):
		// Retryable: another operation holds the lock.
		status = http.StatusServiceUnavailable
		message = err.Error()
	case errors.Is(err, service.ErrTransactionAborted):
		status = http.StatusConflict
		message = err.Error()
	default:
		obs.Logger.Error("request failed", "error", err)
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
