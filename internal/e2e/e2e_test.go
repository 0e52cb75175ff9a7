package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/audit"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/dashboard"
	"github.com/smallbiznis/rentbook/internal/idgen"
	"github.com/smallbiznis/rentbook/internal/migration"
	"github.com/smallbiznis/rentbook/internal/observability"
	"github.com/smallbiznis/rentbook/internal/property"
	"github.com/smallbiznis/rentbook/internal/rent"
	"github.com/smallbiznis/rentbook/internal/scheduler"
	"github.com/smallbiznis/rentbook/internal/seed"
	"github.com/smallbiznis/rentbook/internal/server"
	"github.com/smallbiznis/rentbook/internal/tenancy"
	"github.com/smallbiznis/rentbook/internal/tenant"
	"github.com/smallbiznis/rentbook/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app       *fx.App
	db        *gorm.DB
	clock     *clock.FakeClock
	scheduler *scheduler.Scheduler
	baseURL   string
	httpSrv   *httptest.Server
	dir       string
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	dir, err := os.MkdirTemp("", "rentbook-e2e")
	if err != nil {
		return nil, err
	}
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("LOG_LEVEL", "error")
	setEnvIfEmpty("DATABASE_TYPE", "sqlite")
	setEnvIfEmpty("DATABASE_PATH", filepath.Join(dir, "rentbook.db"))
	setEnvIfEmpty("SCHEDULER_ENABLED", "false")

	fakeClock := clock.NewFakeClock(time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC))

	var (
		srv   *server.Server
		conn  *gorm.DB
		sched *scheduler.Scheduler
	)
	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		idgen.Module,
		db.Module,
		fx.Provide(func() clock.Clock { return fakeClock }),
		audit.Module,
		property.Module,
		tenant.Module,
		rent.Module,
		tenancy.Module,
		dashboard.Module,
		seed.Module,
		migration.Module,
		scheduler.Components,
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &conn, &sched),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	httpSrv := httptest.NewServer(srv.Engine())
	return &testEnv{
		app:       app,
		db:        conn,
		clock:     fakeClock,
		scheduler: sched,
		baseURL:   httpSrv.URL,
		httpSrv:   httpSrv,
		dir:       dir,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
	_ = os.RemoveAll(e.dir)
}

func setEnvIfEmpty(key, value string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, value)
	}
}

func resetDatabase(t *testing.T) {
	t.Helper()
	for _, table := range []string{"audit_logs", "rent_records", "tenancies", "tenants", "properties"} {
		require.NoError(t, env.db.Exec("DELETE FROM "+table).Error)
	}
	env.clock.Set(time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC))
}

type rentRecord struct {
	ID          string `json:"id"`
	PeriodStart string `json:"period_start"`
	AmountDue   string `json:"amount_due"`
	AmountPaid  string `json:"amount_paid"`
	Status      string `json:"status"`
}

type apiError struct {
	Error struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, path string, payload any, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.baseURL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

func recordsByPeriod(t *testing.T, tenancyID string) map[string]rentRecord {
	t.Helper()
	var resp struct {
		Data []rentRecord `json:"data"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, "/api/tenancies/"+tenancyID+"/rent-records", nil, &resp))

	byPeriod := make(map[string]rentRecord, len(resp.Data))
	for _, record := range resp.Data {
		byPeriod[record.PeriodStart[:10]] = record
	}
	return byPeriod
}

func assertAmount(t *testing.T, want, got string) {
	t.Helper()
	parsed, err := decimal.NewFromString(got)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString(want).Equal(parsed), "want %s, got %s", want, got)
}

func createProperty(t *testing.T, address string) string {
	t.Helper()
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, "/api/properties", map[string]string{"address": address}, &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func createTenant(t *testing.T, name string) string {
	t.Helper()
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, "/api/tenants", map[string]string{"name": name, "phone": "+91-9876543210"}, &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func TestE2E_HealthCheck(t *testing.T) {
	resp, err := http.Get(env.baseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestE2E_RentLifecycle(t *testing.T) {
	resetDatabase(t)

	propertyID := createProperty(t, "123 Oak Street, Downtown")
	tenantID := createTenant(t, "John Smith")

	var created struct {
		Data struct {
			Tenancy struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"tenancy"`
			Records []rentRecord `json:"rent_records"`
		} `json:"data"`
	}
	status := doJSON(t, http.MethodPost, "/api/tenancies", map[string]any{
		"property_id":  propertyID,
		"tenant_id":    tenantID,
		"start_date":   "2024-01-15",
		"monthly_rent": "10000",
	}, &created)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", created.Data.Tenancy.Status)
	require.Len(t, created.Data.Records, 3)
	tenancyID := created.Data.Tenancy.ID

	records := recordsByPeriod(t, tenancyID)
	require.Len(t, records, 3)
	for _, period := range []string{"2024-02-01", "2024-03-01", "2024-04-01"} {
		require.Contains(t, records, period)
		assert.Equal(t, "pending", records[period].Status)
	}

	// A second active tenancy on the same property is refused.
	var conflict apiError
	status = doJSON(t, http.MethodPost, "/api/tenancies", map[string]any{
		"property_id":  propertyID,
		"tenant_id":    createTenant(t, "Sarah Johnson"),
		"start_date":   "2024-03-01",
		"monthly_rent": "9000",
	}, &conflict)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "property_occupied", conflict.Error.Code)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, "/api/rent-records/"+records["2024-02-01"].ID+"/pay", nil, nil))

	// Paying twice is an invalid transition.
	var twice apiError
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, "/api/rent-records/"+records["2024-02-01"].ID+"/pay", nil, &twice))
	assert.Equal(t, "invalid_transition", twice.Error.Code)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPatch, "/api/tenancies/"+tenancyID, map[string]any{"monthly_rent": "12000"}, nil))

	records = recordsByPeriod(t, tenancyID)
	require.Len(t, records, 3)
	assert.Equal(t, "paid", records["2024-02-01"].Status)
	assertAmount(t, "10000", records["2024-02-01"].AmountDue)
	assertAmount(t, "12000", records["2024-03-01"].AmountDue)
	assertAmount(t, "12000", records["2024-04-01"].AmountDue)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, "/api/rent-records/"+records["2024-03-01"].ID+"/partial", map[string]string{"amount_paid": "5000"}, nil))

	var overpay apiError
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, "/api/rent-records/"+records["2024-04-01"].ID+"/partial", map[string]string{"amount_paid": "20000"}, &overpay))
	assert.Equal(t, "validation_error", overpay.Error.Type)

	// Time passes and the accrual job fills in the months that became due.
	env.clock.Set(time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, env.scheduler.RunOnce(context.Background()))

	records = recordsByPeriod(t, tenancyID)
	require.Len(t, records, 5)
	assert.Equal(t, "partial", records["2024-03-01"].Status)
	assertAmount(t, "12000", records["2024-05-01"].AmountDue)
	assertAmount(t, "12000", records["2024-06-01"].AmountDue)

	var summary struct {
		Data struct {
			ActiveTenancies  int64  `json:"active_tenancies"`
			PendingRecords   int64  `json:"pending_records"`
			PartialRecords   int64  `json:"partial_records"`
			TotalOutstanding string `json:"total_outstanding"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, "/api/dashboard", nil, &summary))
	assert.EqualValues(t, 1, summary.Data.ActiveTenancies)
	assert.EqualValues(t, 3, summary.Data.PendingRecords)
	assert.EqualValues(t, 1, summary.Data.PartialRecords)
	assertAmount(t, "43000", summary.Data.TotalOutstanding)

	var future apiError
	status = doJSON(t, http.MethodPost, "/api/tenancies/"+tenancyID+"/end", map[string]string{"end_date": "2024-09-30"}, &future)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", future.Error.Type)

	var ended struct {
		Data struct {
			Status  string `json:"status"`
			EndDate string `json:"end_date"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, "/api/tenancies/"+tenancyID+"/end", nil, &ended))
	assert.Equal(t, "completed", ended.Data.Status)
	assert.Equal(t, "2024-06-20", ended.Data.EndDate[:10])

	var notActive apiError
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, "/api/tenancies/"+tenancyID+"/end", nil, &notActive))
	assert.Equal(t, "tenancy_not_active", notActive.Error.Code)

	// Ended tenancies stop accruing.
	env.clock.Set(time.Date(2024, time.August, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, env.scheduler.RunOnce(context.Background()))
	assert.Len(t, recordsByPeriod(t, tenancyID), 5)

	var logs struct {
		Data []struct {
			Action string `json:"action"`
		} `json:"data"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, "/api/audit-logs?page_size=50", nil, &logs))
	actions := make(map[string]bool, len(logs.Data))
	for _, entry := range logs.Data {
		actions[entry.Action] = true
	}
	assert.True(t, actions["tenancy.create"])
	assert.True(t, actions["rent_record.mark_paid"])
	assert.True(t, actions["tenancy.end"])
}

func TestE2E_PreviewAndValidation(t *testing.T) {
	resetDatabase(t)

	var preview struct {
		Data struct {
			Periods []struct {
				DueDate string `json:"due_date"`
			} `json:"periods"`
			Total string `json:"total"`
		} `json:"data"`
	}
	status := doJSON(t, http.MethodGet, "/api/schedule/preview?start=2024-01-31&rent=8000&as_of=2024-04-30", nil, &preview)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, preview.Data.Periods, 3)
	assert.Equal(t, "2024-02-29", preview.Data.Periods[0].DueDate[:10])
	assertAmount(t, "24000", preview.Data.Total)

	var invalid apiError
	status = doJSON(t, http.MethodPost, "/api/tenancies", map[string]any{
		"property_id":  createProperty(t, "456 Maple Avenue, Suburb"),
		"tenant_id":    createTenant(t, "Michael Brown"),
		"start_date":   "2024-02-01",
		"monthly_rent": "-1",
	}, &invalid)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", invalid.Error.Type)

	var count int64
	require.NoError(t, env.db.Table("tenancies").Count(&count).Error)
	assert.Zero(t, count)
}
