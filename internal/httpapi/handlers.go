package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lojafacil/backend/internal/domain"
	"lojafacil/backend/internal/report"
)

func (a *API) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleRegister(c *gin.Context) {
	if !a.loginLimiter.Allow(clientKey(c.Request)) {
		writeError(c, http.StatusTooManyRequests, errors.New("too many attempts"))
		return
	}

	var req domain.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		a.fail(c, err)
		return
	}

	resp, err := a.auth.Register(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	if resp.Profile != nil {
		a.service.CacheProfile(c.Request.Context(), *resp.Profile)
	}
	writeJSON(c, http.StatusCreated, resp)
}

func (a *API) handleLogin(c *gin.Context) {
	if !a.loginLimiter.Allow(clientKey(c.Request)) {
		writeError(c, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		a.fail(c, err)
		return
	}

	resp, err := a.auth.Login(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, resp)
}

func (a *API) handleMe(c *gin.Context) {
	profile, err := a.service.Profile(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"profile": profile})
}

func (a *API) handleListProducts(c *gin.Context) {
	products, err := a.service.ListProducts(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"products": products})
}

func (a *API) handleCreateProduct(c *gin.Context) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(c, &req); err != nil {
		a.fail(c, err)
		return
	}

	product, err := a.service.CreateProduct(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"product": product})
}

func (a *API) handleGetProduct(c *gin.Context) {
	product, err := a.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"product": product})
}

func (a *API) handleUpdateProduct(c *gin.Context) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(c, &req); err != nil {
		a.fail(c, err)
		return
	}

	product, err := a.service.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"product": product})
}

func (a *API) handleDeleteProduct(c *gin.Context) {
	if err := a.service.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleProductStockEntries(c *gin.Context) {
	entries, err := a.service.ListEntriesByProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"stockEntries": entries})
}

func (a *API) handleProductSales(c *gin.Context) {
	sales, err := a.service.ListSalesByProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"sales": sales})
}

func (a *API) handleListStockEntries(c *gin.Context) {
	entries, err := a.service.ListEntries(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"stockEntries": entries})
}

func (a *API) handleRecordStockEntry(c *gin.Context) {
	var req domain.StockEntryRequest
	if err := decodeJSON(c, &req); err != nil {
		a.fail(c, err)
		return
	}

	entry, err := a.service.RecordEntry(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"stockEntry": entry})
}

func (a *API) handleListSales(c *gin.Context) {
	sales, err := a.service.ListSales(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"sales": sales})
}

func (a *API) handleRecordSale(c *gin.Context) {
	var req domain.SaleRequest
	if err := decodeJSON(c, &req); err != nil {
		a.fail(c, err)
		return
	}

	sale, err := a.service.RecordSale(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"sale": sale})
}

func (a *API) handleSalesStats(c *gin.Context) {
	loc, err := a.requestLocation(c)
	if err != nil {
		a.fail(c, err)
		return
	}
	stats, err := a.service.SalesStats(c.Request.Context(), loc)
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stats)
}

func (a *API) handlePaymentMethodReport(c *gin.Context) {
	rows, err := a.service.PaymentMethodReport(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	if wantsCSV(c) {
		a.writeCSV(c, "payment-methods.csv", &rows)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"paymentMethods": rows})
}

func (a *API) handleProductPerformanceReport(c *gin.Context) {
	rows, err := a.service.ProductPerformanceReport(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	if wantsCSV(c) {
		a.writeCSV(c, "product-performance.csv", &rows)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"products": rows})
}

func (a *API) handlePeriodReport(c *gin.Context) {
	loc, err := a.requestLocation(c)
	if err != nil {
		a.fail(c, err)
		return
	}
	days := parsePositiveLimit(c.Query("days"), report.DefaultPeriodDays, 366)

	rows, err := a.service.PeriodReport(c.Request.Context(), days, loc)
	if err != nil {
		a.fail(c, err)
		return
	}
	if wantsCSV(c) {
		a.writeCSV(c, fmt.Sprintf("period-%dd.csv", days), &rows)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"days": days, "periods": rows})
}

func (a *API) handleStockReport(c *gin.Context) {
	rep, err := a.service.StockReport(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rep)
}

func (a *API) handleStockDrift(c *gin.Context) {
	drifts, err := a.service.StockDrift(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"drifts": drifts})
}

func (a *API) handleOverview(c *gin.Context) {
	loc, err := a.requestLocation(c)
	if err != nil {
		a.fail(c, err)
		return
	}
	overview, err := a.service.Overview(c.Request.Context(), c.DefaultQuery("period", domain.OverviewAll), loc)
	if err != nil {
		a.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, overview)
}
