package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	authdomain "github.com/lgndcraft2/giving-tree/internal/auth/domain"
	catalogdomain "github.com/lgndcraft2/giving-tree/internal/catalog/domain"
	"github.com/lgndcraft2/giving-tree/internal/config"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/lgndcraft2/giving-tree/internal/payment/liveevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminToken = "admin-token"

type paymentServiceMock struct {
	mock.Mock
}

func (m *paymentServiceMock) Reconcile(ctx context.Context, reference string) (paymentdomain.ReconcileOutcome, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).(paymentdomain.ReconcileOutcome), args.Error(1)
}

func (m *paymentServiceMock) Initialize(ctx context.Context, req paymentdomain.InitializePaymentRequest) (paymentdomain.InitializePaymentResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(paymentdomain.InitializePaymentResponse), args.Error(1)
}

func (m *paymentServiceMock) ReplayUnapplied(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

func (m *paymentServiceMock) ListPayments(ctx context.Context, req paymentdomain.ListPaymentsRequest) (paymentdomain.ListPaymentsResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(paymentdomain.ListPaymentsResponse), args.Error(1)
}

type stubAuth struct{}

func (stubAuth) CreateUser(context.Context, authdomain.CreateUserRequest) (*authdomain.User, error) {
	return nil, authdomain.ErrUserExists
}

func (stubAuth) Login(_ context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	if req.Username != "admin" || req.Password != "secret" {
		return nil, authdomain.ErrInvalidCredentials
	}
	return &authdomain.LoginResult{Token: adminToken, ExpiresAt: time.Now().Add(time.Hour), UserID: 1}, nil
}

func (stubAuth) Authenticate(_ context.Context, token string) (*authdomain.Principal, error) {
	if token != adminToken {
		return nil, authdomain.ErrInvalidToken
	}
	return &authdomain.Principal{UserID: 1, Username: "admin"}, nil
}

type stubCatalog struct {
	charities []catalogdomain.CharitySummary
	wishes    []catalogdomain.WishView
	toggled   catalogdomain.Charity
}

func (s *stubCatalog) CreateCharity(_ context.Context, req catalogdomain.CreateCharityRequest) (catalogdomain.CharityWithWishes, error) {
	return catalogdomain.CharityWithWishes{Charity: catalogdomain.Charity{ID: 9, Name: req.Name}}, nil
}

func (s *stubCatalog) UpdateCharity(context.Context, catalogdomain.UpdateCharityRequest) (catalogdomain.CharityWithWishes, error) {
	return catalogdomain.CharityWithWishes{}, catalogdomain.ErrWishHasPayments
}

func (s *stubCatalog) ToggleCharityStatus(_ context.Context, id snowflake.ID) (catalogdomain.Charity, error) {
	if id != s.toggled.ID {
		return catalogdomain.Charity{}, catalogdomain.ErrCharityNotFound
	}
	return s.toggled, nil
}

func (s *stubCatalog) GetCharity(context.Context, snowflake.ID) (catalogdomain.CharityWithWishes, error) {
	return catalogdomain.CharityWithWishes{}, catalogdomain.ErrCharityNotFound
}

func (s *stubCatalog) ListCharities(context.Context) ([]catalogdomain.CharitySummary, error) {
	return s.charities, nil
}

func (s *stubCatalog) ListWishes(context.Context) ([]catalogdomain.WishView, error) {
	return s.wishes, nil
}

func (s *stubCatalog) FindWishByID(_ context.Context, id snowflake.ID) (catalogdomain.Wish, error) {
	for _, w := range s.wishes {
		if w.ID == id {
			return w.Wish, nil
		}
	}
	return catalogdomain.Wish{}, catalogdomain.ErrWishNotFound
}

type fixture struct {
	engine   *gin.Engine
	payments *paymentServiceMock
	catalog  *stubCatalog
	hub      *liveevents.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	f := &fixture{
		engine:   engine,
		payments: &paymentServiceMock{},
		catalog: &stubCatalog{
			charities: []catalogdomain.CharitySummary{
				{Charity: catalogdomain.Charity{ID: 5, Name: "Shelter", Active: true}, WishCount: 3},
			},
			wishes: []catalogdomain.WishView{
				{
					Wish: catalogdomain.Wish{
						ID: 11, CharityID: 5, Name: "Blankets",
						UnitPrice: 2000, Quantity: 5, TargetAmount: 12000, CurrentAmount: 4000,
					},
					CharityName: "Shelter",
				},
				{Wish: catalogdomain.Wish{ID: 12, CharityID: 6, Name: "Books", UnitPrice: 500, Quantity: 2, TargetAmount: 1000}},
			},
			toggled: catalogdomain.Charity{ID: 5, Name: "Shelter", Active: false},
		},
		hub: liveevents.NewHub(),
	}

	NewServer(ServerParams{
		Gin: engine,
		Cfg: config.Config{
			PublicDonateURL: "http://localhost:5173/donate",
			CORSOrigins:     []string{"*"},
		},
		Log:        zap.NewNop(),
		AuthSvc:    stubAuth{},
		CatalogSvc: f.catalog,
		PaymentSvc: f.payments,
		Hub:        f.hub,
	})
	return f
}

func (f *fixture) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPaymentCallbackStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		ref    string
		err    error
		status int
		body   string
	}{
		{name: "success", query: "?reference=ref-1", ref: "ref-1", status: http.StatusOK, body: "Success! You paid for Item ID: 11"},
		{name: "trxref fallback", query: "?trxref=ref-2", ref: "ref-2", status: http.StatusOK, body: "Success! You paid for Item ID: 11"},
		{name: "no reference", query: "", ref: "", err: paymentdomain.ErrMissingReference, status: http.StatusBadRequest, body: "No reference"},
		{
			name: "gateway", query: "?reference=ref-3", ref: "ref-3",
			err:    &paymentdomain.GatewayError{Reason: paymentdomain.ReasonVerificationRejected},
			status: http.StatusBadGateway, body: "Payment verification failed",
		},
		{name: "no item", query: "?reference=ref-4", ref: "ref-4", err: paymentdomain.ErrMissingItemID, status: http.StatusBadRequest, body: "Missing item_id in payment metadata"},
		{name: "bad item", query: "?reference=ref-5", ref: "ref-5", err: paymentdomain.ErrInvalidItemID, status: http.StatusNotFound, body: "Invalid item_id"},
		{
			name: "persistence", query: "?reference=ref-6", ref: "ref-6",
			err:    &paymentdomain.PersistenceError{Err: assert.AnError},
			status: http.StatusInternalServerError, body: "Server error creating payment record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.payments.On("Reconcile", mock.Anything, tt.ref).
				Return(paymentdomain.ReconcileOutcome{WishID: 11, Reference: tt.ref}, tt.err)

			w := f.do(http.MethodGet, "/payments/payment_callback"+tt.query, "", nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
			f.payments.AssertExpectations(t)
		})
	}
}

func TestInitializePayment(t *testing.T) {
	f := newFixture(t)
	f.payments.On("Initialize", mock.Anything, mock.MatchedBy(func(req paymentdomain.InitializePaymentRequest) bool {
		return req.Email == "donor@example.com" && req.Quantity == 2 && req.ID.String() == "11"
	})).Return(paymentdomain.InitializePaymentResponse{AuthURL: "https://checkout/abc", Reference: "ref-abc"}, nil)

	w := f.do(http.MethodPost, "/payments/api/initialize-payment",
		`{"email":"donor@example.com","quantity":2,"unit_price":"20.00","amount":"40.00","id":"11"}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["status"])
	assert.Equal(t, "https://checkout/abc", body["auth_url"])
	assert.Equal(t, "ref-abc", body["reference"])
}

func TestInitializePaymentRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/payments/api/initialize-payment", `{"email":`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", decodeBody(t, w)["type"])
	f.payments.AssertNotCalled(t, "Initialize", mock.Anything, mock.Anything)
}

func TestInitializePaymentGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.payments.On("Initialize", mock.Anything, mock.Anything).
		Return(paymentdomain.InitializePaymentResponse{}, paymentdomain.ErrInitializeFailed)

	w := f.do(http.MethodPost, "/payments/api/initialize-payment",
		`{"email":"donor@example.com","quantity":1,"amount":"10","id":"11"}`, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "gateway_error", decodeBody(t, w)["type"])
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	f.payments.On("ListPayments", mock.Anything, mock.Anything).
		Return(paymentdomain.ListPaymentsResponse{Payments: []paymentdomain.PaymentView{
			{Payment: paymentdomain.Payment{ID: 1, Reference: "ref-1", WishID: 11, Quantity: 2, UnitPrice: 2000, Amount: 4000, DonorEmail: "d@example.com"}},
		}}, nil)

	w := f.do(http.MethodGet, "/getters/payments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/getters/payments", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/getters/payments", "", map[string]string{"Authorization": "Bearer " + adminToken})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	payments := body["payments"].([]any)
	require.Len(t, payments, 1)
	first := payments[0].(map[string]any)
	assert.Equal(t, "40.00", first["amount"])
	assert.Equal(t, "Unknown Wish", first["wish_name"])
	assert.Equal(t, "Unknown Charity", first["charity_name"])
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/auth/login", `{"username":"admin","password":"secret"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, adminToken, decodeBody(t, w)["token"])

	w = f.do(http.MethodPost, "/auth/login", `{"username":"admin","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/auth/login", `{"username":"admin"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListWishesAndCharities(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/getters/wishes", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	wishes := decodeBody(t, w)["wishes"].([]any)
	require.Len(t, wishes, 2)

	first := wishes[0].(map[string]any)
	assert.Equal(t, "100.00", first["total_price"])
	assert.Equal(t, "40.00", first["current_price"])
	assert.Equal(t, "Shelter", first["charity_name"])
	assert.Equal(t, "Unknown Charity", wishes[1].(map[string]any)["charity_name"])

	w = f.do(http.MethodGet, "/getters/charities", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	charity := decodeBody(t, w)["charities"].([]any)[0].(map[string]any)
	assert.NotContains(t, charity, "wish_length")

	w = f.do(http.MethodGet, "/getters/charities-admin", "", map[string]string{"Authorization": "Bearer " + adminToken})
	require.Equal(t, http.StatusOK, w.Code)
	charity = decodeBody(t, w)["charities"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(3), charity["wish_length"])
}

func TestCharityAdminEndpoints(t *testing.T) {
	f := newFixture(t)
	auth := map[string]string{"Authorization": "Bearer " + adminToken}

	w := f.do(http.MethodPost, "/adders/charity", `{"name":"Shelter"}`, auth)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Charity Shelter added successfully", decodeBody(t, w)["message"])

	w = f.do(http.MethodPut, "/adders/edit-charity", `{"id":"5","name":"Shelter"}`, auth)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPut, "/changers/charity/5/toggle-status", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Charity status changed to inactive", decodeBody(t, w)["message"])

	w = f.do(http.MethodPut, "/changers/charity/77/toggle-status", "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Charity not found", decodeBody(t, w)["message"])

	w = f.do(http.MethodPut, "/changers/charity/abc/toggle-status", "", auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWishQRCode(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/getters/wishes/11/qrcode", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

	w = f.do(http.MethodGet, "/getters/wishes/99/qrcode", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDonateLink(t *testing.T) {
	assert.Equal(t, "http://x/donate?item_id=11", donateLink("http://x/donate", 11))
	assert.Equal(t, "http://x/donate?ref=qr&item_id=11", donateLink("http://x/donate?ref=qr", 11))
}

func TestDonationWebSocketReceivesEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/donations/ws?wish_id=11"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	f.hub.Publish(paymentdomain.DonationEvent{WishID: 12, Amount: "5.00"})
	f.hub.Publish(paymentdomain.DonationEvent{WishID: 11, Amount: "40.00", WishName: "Blankets"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event paymentdomain.DonationEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, snowflake.ID(11), event.WishID)
	assert.Equal(t, "40.00", event.Amount)
}

func TestDonationStreamSendsEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/donations/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	f.hub.Publish(paymentdomain.DonationEvent{WishID: 11, Amount: "40.00"})

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var event paymentdomain.DonationEvent
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, "40.00", event.Amount)
}

func TestDonationStreamUnknownWish(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/donations/stream?wish_id=99", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		typ    string
	}{
		{err: catalogdomain.ErrWishNotFound, status: http.StatusNotFound, typ: "not_found"},
		{err: catalogdomain.ErrWishHasPayments, status: http.StatusConflict, typ: "conflict"},
		{err: catalogdomain.ErrInvalidID, status: http.StatusBadRequest, typ: "validation_error"},
		{err: &paymentdomain.GatewayError{Reason: paymentdomain.ReasonGatewayUnreachable}, status: http.StatusBadGateway, typ: "gateway_error"},
		{err: &paymentdomain.PersistenceError{Err: assert.AnError}, status: http.StatusInternalServerError, typ: "persistence_error"},
		{err: ErrRateLimited, status: http.StatusTooManyRequests, typ: "rate_limited"},
		{err: liveevents.ErrHubUnavailable, status: http.StatusServiceUnavailable, typ: "service_unavailable"},
		{err: assert.AnError, status: http.StatusInternalServerError, typ: "internal_error"},
	}
	for _, tt := range tests {
		status, payload := mapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.typ, payload.Type, tt.err.Error())
	}
}
