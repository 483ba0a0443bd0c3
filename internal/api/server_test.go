package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tilemm/internal/compute"
	"github.com/samcharles93/tilemm/internal/device"
	"github.com/samcharles93/tilemm/internal/matmul"
)

func newTestEcho(t *testing.T, cfg ServerConfig) *echo.Echo {
	t.Helper()
	dev := device.Simulated("sim", "Test", 32<<10, 256)
	q, err := compute.NewQueue(dev)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	cfg.Queue = q
	cfg.Devices = []device.Device{device.Host(), dev}
	server := NewServer(cfg)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const twoByTwo = `{"a":{"rows":2,"cols":2,"data":[1,2,3,4]},"b":{"rows":2,"cols":2,"data":[5,6,7,8]},"tile_size":2,"verify":true}`

func TestMatmulLifecycle(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{})
	rec := doJSON(t, e, http.MethodPost, "/v1/matmul", twoByTwo)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var created MatmulResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(created.ID, "mm_") {
		t.Fatalf("unexpected id %q", created.ID)
	}
	want := []float64{19, 22, 43, 50}
	for i, w := range want {
		if created.C.Data[i] != w {
			t.Fatalf("C[%d]: got %v want %v", i, created.C.Data[i], w)
		}
	}
	if created.Verified == nil || !*created.Verified {
		t.Fatalf("expected verified result, got %v", created.Verified)
	}
	if created.Strategy != string(matmul.StrategyLocal) || created.TileSize != 2 {
		t.Fatalf("unexpected launch info: %+v", created)
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/matmul/"+created.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d", getRec.Code)
	}

	delRec := doJSON(t, e, http.MethodDelete, "/v1/matmul/"+created.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d", delRec.Code)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/matmul/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rec.Code)
	}
}

func TestMatmulRejectsTileNotDividingK(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{})
	const k, n = 256, 34
	body := fmt.Sprintf(`{"a":{"rows":1,"cols":%d,"data":[%s]},"b":{"rows":%d,"cols":%d,"data":[%s]},"tile_size":17}`,
		k, zeros(k), k, n, zeros(k*n))
	rec := doJSON(t, e, http.MethodPost, "/v1/matmul", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"configuration_error"`) {
		t.Fatalf("expected configuration_error, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "tile divides reduction dimension") {
		t.Fatalf("expected violated constraint, got %s", rec.Body.String())
	}
}

func TestMatmulResourceExhausted(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{})
	body := fmt.Sprintf(`{"a":{"rows":1,"cols":512,"data":[%s]},"b":{"rows":512,"cols":512,"data":[%s]},"tile_size":512}`,
		zeros(512), zeros(512*512))
	rec := doJSON(t, e, http.MethodPost, "/v1/matmul", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMatmulBadRequests(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{MaxElements: 16})
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"malformed", `{"a":`},
		{"missing b", `{"a":{"rows":1,"cols":1,"data":[1]}}`},
		{"data length", `{"a":{"rows":1,"cols":2,"data":[1]},"b":{"rows":2,"cols":1,"data":[1,2]}}`},
		{"too large", fmt.Sprintf(`{"a":{"rows":1,"cols":32,"data":[%s]},"b":{"rows":32,"cols":1,"data":[%s]}}`, zeros(32), zeros(32))},
		{"strategy", `{"a":{"rows":1,"cols":1,"data":[1]},"b":{"rows":1,"cols":1,"data":[1]},"strategy":"warp"}`},
	}
	for _, tc := range tests {
		rec := doJSON(t, e, http.MethodPost, "/v1/matmul", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
	}
}

func TestMatmulRejectsOversizedResult(t *testing.T) {
	t.Parallel()

	// Both operands fit under the limit but the 16x16 result does not.
	e := newTestEcho(t, ServerConfig{MaxElements: 64})
	body := fmt.Sprintf(`{"a":{"rows":16,"cols":1,"data":[%s]},"b":{"rows":1,"cols":16,"data":[%s]}}`, zeros(16), zeros(16))
	rec := doJSON(t, e, http.MethodPost, "/v1/matmul", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "c: 16x16 exceeds limit") {
		t.Fatalf("expected result size error, got %s", rec.Body.String())
	}
}

func TestExceedsElements(t *testing.T) {
	t.Parallel()

	const maxInt = int(^uint(0) >> 1)
	tests := []struct {
		rows, cols, max int
		want            bool
	}{
		{4, 4, 16, false},
		{4, 5, 16, true},
		{0, maxInt, 16, false},
		{1 << 40, 1 << 40, 1 << 20, true},
		{maxInt, 2, maxInt, true},
		{65536, 65536, DefaultMaxElements, true},
		{65536, 65536, 0, false},
	}
	for _, tc := range tests {
		if got := exceedsElements(tc.rows, tc.cols, tc.max); got != tc.want {
			t.Errorf("exceedsElements(%d, %d, %d): got %v want %v", tc.rows, tc.cols, tc.max, got, tc.want)
		}
	}
}

func TestMatmulPadRemainderOverride(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{Defaults: matmul.Config{TileSize: 16, Strategy: matmul.StrategyLocal, PadRemainder: true}})
	const k, n = 12, 16
	operands := fmt.Sprintf(`"a":{"rows":1,"cols":%d,"data":[%s]},"b":{"rows":%d,"cols":%d,"data":[%s]}`,
		k, zeros(k), k, n, zeros(k*n))

	tests := []struct {
		name string
		pad  string
		want int
	}{
		{"server default pads", ``, http.StatusOK},
		{"explicit true", `,"pad_remainder":true`, http.StatusOK},
		{"explicit false", `,"pad_remainder":false`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		rec := doJSON(t, e, http.MethodPost, "/v1/matmul", "{"+operands+tc.pad+"}")
		if rec.Code != tc.want {
			t.Errorf("%s: got %d want %d body=%s", tc.name, rec.Code, tc.want, rec.Body.String())
		}
	}
}

func TestMatmulAutotunePaddedThenStrict(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{})
	const k, n = 12, 16
	operands := fmt.Sprintf(`"a":{"rows":1,"cols":%d,"data":[%s]},"b":{"rows":%d,"cols":%d,"data":[%s]},"autotune":true`,
		k, zeros(k), k, n, zeros(k*n))

	if rec := doJSON(t, e, http.MethodPost, "/v1/matmul", "{"+operands+`,"pad_remainder":true}`); rec.Code != http.StatusOK {
		t.Fatalf("padded autotune: got %d body=%s", rec.Code, rec.Body.String())
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/matmul", "{"+operands+"}")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("strict autotune after padded: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"configuration_error"`) {
		t.Fatalf("expected configuration_error, got %s", rec.Body.String())
	}
}

func TestMatmulRateLimited(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{RatePerSecond: 0.001, Burst: 1})
	if rec := doJSON(t, e, http.MethodPost, "/v1/matmul", twoByTwo); rec.Code != http.StatusOK {
		t.Fatalf("first request: got %d", rec.Code)
	}
	if rec := doJSON(t, e, http.MethodPost, "/v1/matmul", twoByTwo); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rec.Code)
	}
}

func TestMatmulNotStored(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{})
	body := strings.Replace(twoByTwo, `"verify":true`, `"store":false`, 1)
	rec := doJSON(t, e, http.MethodPost, "/v1/matmul", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var created MatmulResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec := doJSON(t, e, http.MethodGet, "/v1/matmul/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unstored result retrievable: got %d", rec.Code)
	}
}

func TestDevices(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{})
	rec := doJSON(t, e, http.MethodGet, "/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var list DeviceList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(list.Data))
	}
	if list.Data[0].Active || !list.Data[1].Active {
		t.Fatalf("expected simulated device active: %+v", list.Data)
	}
}

func TestResultStoreEviction(t *testing.T) {
	t.Parallel()

	s := NewResultStore(2)
	for _, id := range []string{"a", "b", "c"} {
		s.Save(MatmulResponse{ID: id})
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("oldest result not evicted")
	}
	if s.Len() != 2 {
		t.Fatalf("len: got %d", s.Len())
	}
	if !s.Delete("b") || s.Delete("b") {
		t.Fatal("delete semantics")
	}
}

func zeros(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "0"
	}
	return strings.Join(parts, ",")
}

func TestMatmulAutotune(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t, ServerConfig{})
	a := make([]string, 2*16)
	for i := range a {
		a[i] = fmt.Sprint(i % 5)
	}
	b := make([]string, 16*16)
	for i := range b {
		b[i] = fmt.Sprint(i % 3)
	}
	body := fmt.Sprintf(`{"a":{"rows":2,"cols":16,"data":[%s]},"b":{"rows":16,"cols":16,"data":[%s]},"autotune":true,"verify":true}`,
		strings.Join(a, ","), strings.Join(b, ","))

	rec := doJSON(t, e, http.MethodPost, "/v1/matmul", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp MatmulResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TileSize != 8 && resp.TileSize != 16 {
		t.Fatalf("tuned tile %d does not divide 16", resp.TileSize)
	}
	if resp.Verified == nil || !*resp.Verified {
		t.Fatalf("expected verified result")
	}
}
