package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kyccase/internal/kyc/handler"
	"kyccase/internal/kyc/lock"
	"kyccase/internal/kyc/report"
	"kyccase/internal/kyc/risk"
	"kyccase/internal/kyc/screening"
	"kyccase/internal/kyc/service"
	"kyccase/internal/kyc/store"
	"kyccase/internal/kyc/vendor"
	"kyccase/internal/platform/config"
	httpmetrics "kyccase/internal/platform/metrics"
	"kyccase/pkg/testutil"
)

func testRouter(t *testing.T, checks map[string]func(context.Context) error) http.Handler {
	t.Helper()
	catalog := store.NewMemory()
	client := vendor.NewFake()
	scorer, err := risk.New(risk.DefaultConfig())
	require.NoError(t, err)
	locker := lock.NewMemory()
	reports := report.NewBuilder()
	orch := screening.New(catalog, client, scorer, reports, locker)
	svc := service.New(catalog, orch, client, reports, locker)

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newRouter(handler.New(svc, logger), httpmetrics.New(reg), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), checks)
}

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "the case engine router", func(t *testing.T) {
		router := testRouter(t, map[string]func(context.Context) error{
			"database": func(context.Context) error { return nil },
		})

		testutil.When(t, "calling GET /health", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "every dependency reports ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				testutil.AssertJSONContains(t, rec, "database", "ok")
			})
		})

		testutil.When(t, "creating a subject with an empty body", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/subjects", "{}"))

			testutil.Then(t, "it is rejected as a validation error", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "validation_error")
			})
		})

		testutil.When(t, "calling GET /metrics after traffic", func(t *testing.T) {
			testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/cases"))
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "request counters are exposed by route pattern", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				assert.Contains(t, rec.Body.String(), `kyc_http_requests_total{method="GET",route="/cases",status="200"} 1`)
			})
		})
	})
}

func TestHealthReportsFailingDependency(t *testing.T) {
	router := testRouter(t, map[string]func(context.Context) error{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

	testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(t, rec, "redis", "connection refused")
}

func TestRiskConfigOverlay(t *testing.T) {
	t.Run("empty config keeps defaults", func(t *testing.T) {
		assert.Equal(t, risk.DefaultConfig(), riskConfig(config.RiskConfig{}))
	})

	t.Run("configured values replace defaults", func(t *testing.T) {
		got := riskConfig(config.RiskConfig{
			Weights:              map[string]float64{"sanctions": 60, "pep_status": 40},
			HighRiskCountries:    []string{"IR"},
			HighRiskCountryFloor: 80,
		})
		assert.Len(t, got.Weights, 2)
		assert.Equal(t, []string{"IR"}, got.HighRiskCountries)
		assert.Equal(t, risk.DefaultMediumRiskCountries, got.MediumRiskCountries)
		assert.Equal(t, 80.0, got.HighRiskCountryFloor)
		_, err := risk.New(got)
		assert.NoError(t, err)
	})
}
