package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/service"
	"lojafacil/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo)
	auth, err := NewAuthManager(testSecret, time.Hour, repo)
	require.NoError(t, err)

	return New(svc, auth, "*", time.UTC, nil).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), rec.Body.String())
	return out
}

func registerOwner(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{
		Email: email, Password: "senha-segura", CompanyName: "Loja " + email, ResponsibleName: "Dona",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[domain.LoginResponse](t, rec)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func loginAsDemo(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Email: memory.SeedDemoEmail, Password: memory.SeedDemoPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[domain.LoginResponse](t, rec).AccessToken
}

func TestHandleHealth(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ok"])
}

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Referrer-Policy"))
}

func TestLoginRateLimitReturns429(t *testing.T) {
	h := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Email: memory.SeedDemoEmail, Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if i < 5 {
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d", i+1)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	h := newTestAPI(t)
	veryLong := strings.Repeat("a", maxBodyBytes+1024)
	body := fmt.Sprintf(`{"email":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownFieldsRejected(t *testing.T) {
	h := newTestAPI(t)
	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/products", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	h := newTestAPI(t)
	registerOwner(t, h, "dup@loja.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/auth/register", "", domain.RegisterRequest{
		Email: "DUP@loja.com", Password: "senha-segura", CompanyName: "X", ResponsibleName: "Y",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	h := newTestAPI(t)
	token := loginAsDemo(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Profile domain.UserProfile `json:"profile"`
	}](t, rec)
	assert.Equal(t, memory.SeedDemoEmail, body.Profile.Email)
	assert.Equal(t, "Loja Demo", body.Profile.CompanyName)
}

func TestInventoryFlowOverHTTP(t *testing.T) {
	h := newTestAPI(t)
	token := registerOwner(t, h, "ana@loja.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "Café", "costPrice": "10", "salePrice": "15", "initialStock": 20,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[struct {
		Product domain.Product `json:"product"`
	}](t, rec).Product
	assert.Equal(t, "5", product.Profit.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/stock-entries", token, domain.StockEntryRequest{
		ProductID: product.ID, Quantity: 10, ReceivedBy: "Ana", ReceivedFrom: "Distribuidora",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleRequest{
		ProductID: product.ID, Quantity: 5, PaymentMethod: domain.PaymentPix,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[struct {
		Sale domain.Sale `json:"sale"`
	}](t, rec).Sale
	assert.Equal(t, "75", sale.TotalValue.String())
	assert.Equal(t, "25", sale.Profit.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleRequest{
		ProductID: product.ID, Quantity: 26, PaymentMethod: domain.PaymentCash,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleRequest{
		ProductID: product.ID, Quantity: 1, PaymentMethod: "boleto",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/stock", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stock := decode[domain.StockReport](t, rec)
	assert.Equal(t, 25, stock.TotalStockItems)
	assert.Equal(t, "250", stock.TotalStockValue.String())
	assert.Zero(t, stock.LowStockCount)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/products/"+product.ID+"/sales", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Sales []domain.Sale `json:"sales"`
	}](t, rec).Sales, 1)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/stock/drift", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Drifts []domain.StockDrift `json:"drifts"`
	}](t, rec).Drifts)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/dashboard/overview?period=today&tz=America/Sao_Paulo", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode[domain.Overview](t, rec)
	assert.Equal(t, 1, overview.SalesCount)
	require.Len(t, overview.RecentSales, 1)
	assert.Equal(t, "Café", overview.RecentSales[0].ProductName)
}

func TestCreateProductRejectsUnboundedPrices(t *testing.T) {
	h := newTestAPI(t)
	token := registerOwner(t, h, "ana@loja.com")

	for _, price := range []string{"1e50000000", "0.005"} {
		rec := doJSON(t, h, http.MethodPost, "/api/v1/products", token, map[string]any{
			"name": "Caro", "costPrice": "1", "salePrice": price, "initialStock": 1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, price)
	}

	rec := doJSON(t, h, http.MethodGet, "/api/v1/products", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, rec.Body.Len(), 1024)
}

func TestOwnerScopingHidesForeignProducts(t *testing.T) {
	h := newTestAPI(t)
	ana := registerOwner(t, h, "ana@loja.com")
	bia := registerOwner(t, h, "bia@loja.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/products", ana, map[string]any{
		"name": "Pão", "costPrice": "1", "salePrice": "2", "initialStock": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	product := decode[struct {
		Product domain.Product `json:"product"`
	}](t, rec).Product

	rec = doJSON(t, h, http.MethodGet, "/api/v1/products/"+product.ID, bia, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/products/"+product.ID, bia, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", bia, domain.SaleRequest{
		ProductID: product.ID, Quantity: 1, PaymentMethod: domain.PaymentPix,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/products", bia, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[struct {
		Products []domain.Product `json:"products"`
	}](t, rec).Products)

	rec = doJSON(t, h, http.MethodDelete, "/api/v1/products/"+product.ID, ana, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReportsExportCSV(t *testing.T) {
	h := newTestAPI(t)
	token := registerOwner(t, h, "ana@loja.com")

	rec := doJSON(t, h, http.MethodPost, "/api/v1/products", token, map[string]any{
		"name": "Leite", "costPrice": "4", "salePrice": "6", "initialStock": 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	product := decode[struct {
		Product domain.Product `json:"product"`
	}](t, rec).Product

	for _, method := range []domain.PaymentMethod{domain.PaymentCard, domain.PaymentCard, domain.PaymentCredit} {
		rec = doJSON(t, h, http.MethodPost, "/api/v1/sales", token, domain.SaleRequest{
			ProductID: product.ID, Quantity: 1, PaymentMethod: method,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/payment-methods?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "method,label,total,count,percentage", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "cartao,Cartão,12,2,"))

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/period?days=7&format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "period-7d.csv")

	rec = doJSON(t, h, http.MethodGet, "/api/v1/reports/products", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	perf := decode[struct {
		Products []domain.ProductPerformance `json:"products"`
	}](t, rec).Products
	require.Len(t, perf, 1)
	assert.Equal(t, 3, perf[0].TotalSold)
}

func TestReportInputValidation(t *testing.T) {
	h := newTestAPI(t)
	token := loginAsDemo(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/dashboard/overview?period=decade", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/sales/stats?tz=Mars/Olympus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Timezone", "America/Sao_Paulo")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestParsePositiveLimitCaps(t *testing.T) {
	assert.Equal(t, 200, parsePositiveLimit("9999", 50, 200))
	assert.Equal(t, 50, parsePositiveLimit("", 50, 200))
	assert.Equal(t, 50, parsePositiveLimit("invalid", 50, 200))
}

func TestStatusForMapsDomainErrors(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(service.ErrUnauthenticated))
	assert.Equal(t, http.StatusUnauthorized, statusFor(ErrInvalidCredentials))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}
