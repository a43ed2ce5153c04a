package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sunvolt/solarshop/internal/auth"
	"github.com/sunvolt/solarshop/internal/cart"
	"github.com/sunvolt/solarshop/internal/catalog"
	"github.com/sunvolt/solarshop/internal/handler"
)

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetCart(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) AddItem(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*cart.Cart, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) SetQuantity(ctx context.Context, userID uuid.UUID, productID int64, quantity int) (*cart.Cart, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID int64) (*cart.Cart, error) {
	args := m.Called(ctx, userID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) Clear(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockCartService) Sync(ctx context.Context, userID uuid.UUID, items []cart.SyncItem) (*cart.Cart, error) {
	args := m.Called(ctx, userID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func newCartRouter(svc cart.Service) *chi.Mux {
	router := chi.NewRouter()
	handler.NewCartHandler(svc).RegisterRoutes(router)
	return router
}

func authenticatedRequest(t *testing.T, method, target string, body []byte, p auth.Principal) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(auth.ContextWithPrincipal(req.Context(), p))
}

func TestCartHandler_handleGetCart_Success(t *testing.T) {
	mockService := new(MockCartService)
	userID := uuid.Must(uuid.NewV4())
	principal := auth.Principal{UserID: userID, Role: auth.RoleCustomer}

	expected := &cart.Cart{
		ID:       uuid.Must(uuid.NewV4()),
		UserID:   userID,
		Status:   cart.StatusActive,
		Currency: "usd",
		Subtotal: 39800,
		Total:    39800,
		Lines: []cart.Line{
			{ProductID: 10, Name: "Solar Panel 400W", UnitPrice: 19900, Quantity: 2},
		},
	}
	mockService.On("GetCart", mock.Anything, userID).Return(expected, nil).Once()

	rr := httptest.NewRecorder()
	newCartRouter(mockService).ServeHTTP(rr, authenticatedRequest(t, http.MethodGet, "/cart", nil, principal))

	require.Equal(t, http.StatusOK, rr.Code)

	var actual cart.Cart
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&actual))
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.Total, actual.Total)
	require.Len(t, actual.Lines, 1)
	assert.Equal(t, "Solar Panel 400W", actual.Lines[0].Name)
	mockService.AssertExpectations(t)
}

func TestCartHandler_handleGetCart_Unauthenticated(t *testing.T) {
	mockService := new(MockCartService)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rr := httptest.NewRecorder()
	newCartRouter(mockService).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	mockService.AssertNotCalled(t, "GetCart")
}

func TestCartHandler_handleAddItem_Success(t *testing.T) {
	mockService := new(MockCartService)
	userID := uuid.Must(uuid.NewV4())
	principal := auth.Principal{UserID: userID, Role: auth.RoleCustomer}

	expected := &cart.Cart{ID: uuid.Must(uuid.NewV4()), UserID: userID, Status: cart.StatusActive, Subtotal: 19900, Total: 19900}
	mockService.On("AddItem", mock.Anything, userID, int64(10), 1).Return(expected, nil).Once()

	body, err := json.Marshal(handler.AddItemRequest{ProductID: 10, Quantity: 1})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newCartRouter(mockService).ServeHTTP(rr, authenticatedRequest(t, http.MethodPost, "/cart/items", body, principal))

	require.Equal(t, http.StatusOK, rr.Code)
	mockService.AssertExpectations(t)
}

func TestCartHandler_handleAddItem_ValidationFailure(t *testing.T) {
	mockService := new(MockCartService)
	principal := auth.Principal{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleCustomer}

	body, err := json.Marshal(handler.AddItemRequest{ProductID: 10, Quantity: 0})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newCartRouter(mockService).ServeHTTP(rr, authenticatedRequest(t, http.MethodPost, "/cart/items", body, principal))

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp handler.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Contains(t, resp.Details, "Quantity")
	mockService.AssertNotCalled(t, "AddItem")
}

func TestCartHandler_handleAddItem_UnknownProduct(t *testing.T) {
	mockService := new(MockCartService)
	userID := uuid.Must(uuid.NewV4())
	principal := auth.Principal{UserID: userID, Role: auth.RoleCustomer}

	mockService.On("AddItem", mock.Anything, userID, int64(999), 1).
		Return(nil, catalog.ErrProductNotFound).Once()

	body, err := json.Marshal(handler.AddItemRequest{ProductID: 999, Quantity: 1})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newCartRouter(mockService).ServeHTTP(rr, authenticatedRequest(t, http.MethodPost, "/cart/items", body, principal))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	mockService.AssertExpectations(t)
}

func TestCartHandler_handleSetQuantity_InvalidProductID(t *testing.T) {
	mockService := new(MockCartService)
	principal := auth.Principal{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleCustomer}

	body, err := json.Marshal(handler.SetQuantityRequest{Quantity: 2})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newCartRouter(mockService).ServeHTTP(rr, authenticatedRequest(t, http.MethodPut, "/cart/items/not-a-number", body, principal))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	mockService.AssertNotCalled(t, "SetQuantity")
}

func TestCartHandler_handleSync_Success(t *testing.T) {
	mockService := new(MockCartService)
	userID := uuid.Must(uuid.NewV4())
	principal := auth.Principal{UserID: userID, Role: auth.RoleCustomer}

	items := []cart.SyncItem{{ProductID: 10, Quantity: 2}, {ProductID: 11, Quantity: 1}}
	expected := &cart.Cart{ID: uuid.Must(uuid.NewV4()), UserID: userID, Status: cart.StatusActive}
	mockService.On("Sync", mock.Anything, userID, items).Return(expected, nil).Once()

	body, err := json.Marshal(handler.SyncRequest{Items: items})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newCartRouter(mockService).ServeHTTP(rr, authenticatedRequest(t, http.MethodPost, "/cart/sync", body, principal))

	require.Equal(t, http.StatusOK, rr.Code)
	mockService.AssertExpectations(t)
}
