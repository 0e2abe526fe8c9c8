package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"eshop/internal/model"
	"eshop/internal/repository"
	"eshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubTaxService struct {
	quote    decimal.Decimal
	quoteErr error
	totals   []repository.RateTaxTotal
}

func (s *stubTaxService) MatchGeoZones(ctx context.Context, loc model.Location) ([]model.GeoZone, error) {
	return nil, nil
}

func (s *stubTaxService) CalculateTax(ctx context.Context, taxClassID *uuid.UUID, zones []model.GeoZone, base decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubTaxService) QuoteTax(ctx context.Context, taxClassID uuid.UUID, loc model.Location, amount decimal.Decimal) (decimal.Decimal, error) {
	if s.quoteErr != nil {
		return decimal.Zero, s.quoteErr
	}
	return s.quote, nil
}

func (s *stubTaxService) RecordOrderTaxes(ctx context.Context, order *model.Order, loc model.Location) ([]model.OrderTax, error) {
	return nil, nil
}

func (s *stubTaxService) OrderTotalTax(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubTaxService) CollectedByRate(ctx context.Context) ([]repository.RateTaxTotal, error) {
	return s.totals, nil
}

var _ service.TaxService = (*stubTaxService)(nil)

func quoteRouter(svc service.TaxService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewTaxHandler(svc, nil)
	router := gin.New()
	router.GET("/api/tax/quote", h.QuoteTax)
	router.GET("/api/tax/report", h.CollectedReport)
	return router
}

func TestQuoteTaxEndpoint(t *testing.T) {
	router := quoteRouter(&stubTaxService{quote: decimal.RequireFromString("17.00")})

	classID := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/api/tax/quote?tax_class_id="+classID+"&country=US&state=CA&amount=200", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Data   struct {
			Amount string `json:"amount"`
			Tax    string `json:"tax"`
			Total  string `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "success", body.Status)
	require.Equal(t, "200.00", body.Data.Amount)
	require.Equal(t, "17.00", body.Data.Tax)
	require.Equal(t, "217.00", body.Data.Total)
}

func TestQuoteTaxEndpointRejectsBadInput(t *testing.T) {
	router := quoteRouter(&stubTaxService{})

	cases := []string{
		"/api/tax/quote?tax_class_id=not-a-uuid&country=US&amount=100",
		"/api/tax/quote?tax_class_id=" + uuid.New().String() + "&amount=100",
		"/api/tax/quote?tax_class_id=" + uuid.New().String() + "&country=US&amount=abc",
	}
	for _, url := range cases {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, url)
	}
}

func TestCollectedReportEndpoint(t *testing.T) {
	rateID := uuid.New()
	router := quoteRouter(&stubTaxService{totals: []repository.RateTaxTotal{
		{TaxRateID: rateID, Title: "State Tax", Total: decimal.RequireFromString("123.45")},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/tax/report", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Totals []struct {
				Title string `json:"title"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Totals, 1)
	require.Equal(t, "State Tax", body.Data.Totals[0].Title)
}
