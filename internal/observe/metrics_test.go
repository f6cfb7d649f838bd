package observe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// newTestMetrics returns Metrics backed by a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	met := findMetric(rm, name)
	require.NotNil(t, met, "metric %q not found", name)
	sum, ok := met.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %q is not an int64 sum", name)
	return sum
}

func TestRegistered(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Registered(ctx, "grep", 3)
	m.Registered(ctx, "wiki", 5)

	rm := collect(t, reader)

	regs := sumOf(t, rm, "tooldb.registrations")
	require.Len(t, regs.DataPoints, 1)
	assert.Equal(t, int64(2), regs.DataPoints[0].Value)

	frags := sumOf(t, rm, "tooldb.fragments")
	require.Len(t, frags.DataPoints, 1)
	assert.Equal(t, int64(8), frags.DataPoints[0].Value)
}

func TestMatched(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Matched(ctx, "found")
	m.Matched(ctx, "found")
	m.Matched(ctx, "not_found")

	matches := sumOf(t, collect(t, reader), "tooldb.matches")

	got := map[string]int64{}
	for _, dp := range matches.DataPoints {
		v, ok := dp.Attributes.Value("result")
		require.True(t, ok)
		got[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"found": 2, "not_found": 1}, got)
}

// routed wraps mux with Middleware so requests carry the matched pattern.
func routed(m *Metrics, logger *zap.Logger, pattern string, h http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	return Middleware(m, logger)(mux)
}

func TestMiddleware_RecordsDurationAndLogs(t *testing.T) {
	m, reader := newTestMetrics(t)
	core, logs := observer.New(zap.InfoLevel)

	handler := routed(m, zap.New(core), "GET /tool/match", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tool/match?task=x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	met := findMetric(collect(t, reader), "tooldb.http.request.duration")
	require.NotNil(t, met)
	hist, ok := met.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(1), dp.Count)

	route, _ := dp.Attributes.Value("route")
	assert.Equal(t, "GET /tool/match", route.AsString())
	status, _ := dp.Attributes.Value("status")
	assert.Equal(t, "404", status.AsString())

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 404, entries[0].ContextMap()["status"])
	assert.Equal(t, "/tool/match", entries[0].ContextMap()["path"])
}

func TestMiddleware_UnknownPathsShareOneSeries(t *testing.T) {
	m, reader := newTestMetrics(t)
	handler := routed(m, nil, "GET /healthz", func(w http.ResponseWriter, r *http.Request) {})

	for _, p := range []string{"/wp-login.php", "/.env", "/admin/config"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	hist := findMetric(collect(t, reader), "tooldb.http.request.duration").Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(3), hist.DataPoints[0].Count)
	route, _ := hist.DataPoints[0].Attributes.Value("route")
	assert.Equal(t, "unmatched", route.AsString())
}

func TestMiddleware_DefaultStatusOK(t *testing.T) {
	m, reader := newTestMetrics(t)

	handler := Middleware(m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	hist := findMetric(collect(t, reader), "tooldb.http.request.duration").Data.(metricdata.Histogram[float64])
	status, _ := hist.DataPoints[0].Attributes.Value("status")
	assert.Equal(t, "200", status.AsString())
}

func TestInitProvider_ServesPrometheus(t *testing.T) {
	ctx := context.Background()
	p, err := InitProvider(ctx, ProviderConfig{ServiceVersion: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(ctx) })

	m, err := NewMetrics(p.MeterProvider())
	require.NoError(t, err)
	m.Matched(ctx, "found")
	m.Registered(ctx, "grep", 3)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tooldb_matches")
	assert.Contains(t, string(body), "tooldb_fragments")
	assert.Contains(t, string(body), `result="found"`)
	assert.Contains(t, string(body), `service_name="tooldb"`)
	assert.Contains(t, string(body), `service_version="test"`)
}

func TestInitProvider_Independent(t *testing.T) {
	ctx := context.Background()
	a, err := InitProvider(ctx, ProviderConfig{})
	require.NoError(t, err)
	defer a.Shutdown(ctx)

	// A second provider must not collide on registration
	b, err := InitProvider(ctx, ProviderConfig{})
	require.NoError(t, err)
	defer b.Shutdown(ctx)
}
