package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sxyu/cantus-chem/core/chemdata"
	"github.com/sxyu/cantus-chem/core/resolve"
)

// newTestServer builds a server on the embedded tables and wraps it in
// an httptest server running the full middleware chain.
func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()

	if cfg.Registry == nil {
		cfg.Registry = chemdata.MustDefault()
	}

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, ts
}

// decodeResponse decodes the standard response wrapper from a body.
func decodeResponse(t *testing.T, body io.Reader) APIResponse {
	t.Helper()

	var resp APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

// decodeData re-marshals the Data field into a typed value.
func decodeData(t *testing.T, resp APIResponse, out interface{}) {
	t.Helper()

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("Failed to re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

func postResolve(t *testing.T, ts *httptest.Server, req ResolveRequest) *http.Response {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	resp, err := http.Post(ts.URL+"/v1/resolve", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/resolve failed: %v", err)
	}
	return resp
}

func TestHandleRoot(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	if !decoded.Success {
		t.Error("Expected success=true")
	}

	var data map[string]interface{}
	decodeData(t, decoded, &data)
	if data["name"] != "Cantus Chem API" {
		t.Errorf("Expected name 'Cantus Chem API', got %v", data["name"])
	}
	if _, ok := data["endpoints"]; !ok {
		t.Error("Expected endpoints list in root response")
	}
}

func TestHandleRootUnknownPath(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	if decoded.Success {
		t.Error("Expected success=false")
	}
	if decoded.Error == nil || decoded.Error.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND error, got %+v", decoded.Error)
	}
}

func TestHandleHealthz(t *testing.T) {
	s, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	var health HealthInfo
	decodeData(t, decoded, &health)

	if health.Status != "healthy" {
		t.Errorf("Expected status healthy, got %s", health.Status)
	}
	if health.Fingerprint != s.registry.Fingerprint() {
		t.Errorf("Fingerprint mismatch: got %s", health.Fingerprint)
	}
	if health.Elements == 0 {
		t.Error("Expected a non-zero element count")
	}
	if health.Ions == 0 {
		t.Error("Expected a non-zero ion count")
	}
}

func TestHandleHealthzMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Post(ts.URL+"/healthz", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestHandleResolve(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := postResolve(t, ts, ResolveRequest{Formula: "H2O"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	if !decoded.Success {
		t.Fatal("Expected success=true")
	}

	var result resolve.Result
	decodeData(t, decoded, &result)

	if result.Formula != "H2O" {
		t.Errorf("Expected formula H2O, got %s", result.Formula)
	}
	if len(result.Elements) != 2 {
		t.Fatalf("Expected 2 elements, got %d", len(result.Elements))
	}
	if result.Mass == nil {
		t.Fatal("Expected a mass value")
	}
	if got := result.Mass.String(); got != "18.02" {
		t.Errorf("Expected mass 18.02, got %s", got)
	}
}

func TestHandleResolveWithIons(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := postResolve(t, ts, ResolveRequest{Formula: "Al2(SO4)3", Ions: true})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	var result resolve.Result
	decodeData(t, decoded, &result)

	if len(result.Ions) != 1 {
		t.Fatalf("Expected 1 recognized ion, got %d", len(result.Ions))
	}
	if result.Ions[0].Key != "SO4" || result.Ions[0].Count != 3 {
		t.Errorf("Expected SO4 x3, got %s x%d", result.Ions[0].Key, result.Ions[0].Count)
	}
}

func TestHandleResolveWithHints(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp := postResolve(t, ts, ResolveRequest{
		Formula: "Fe",
		Hints:   map[string]int{"Fe": 3},
	})
	defer resp.Body.Close()

	decoded := decodeResponse(t, resp.Body)
	var result resolve.Result
	decodeData(t, decoded, &result)

	if result.Charge == nil {
		t.Fatal("Expected a charge set")
	}
	if len(result.Charge.Candidates) != 1 || result.Charge.Candidates[0] != 3 {
		t.Errorf("Expected charge candidates [3], got %v", result.Charge.Candidates)
	}
}

func TestHandleResolveParseErrors(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	tests := []struct {
		formula  string
		wantCode string
	}{
		{"", "EMPTY_FORMULA"},
		{"(H2O", "UNBALANCED_GROUP"},
		{"H2O!", "ILLEGAL_CHARACTER"},
		{"H0", "INVALID_MULTIPLIER"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			resp := postResolve(t, ts, ResolveRequest{Formula: tt.formula})
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}

			decoded := decodeResponse(t, resp.Body)
			if decoded.Success {
				t.Error("Expected success=false")
			}
			if decoded.Error == nil || decoded.Error.Code != tt.wantCode {
				t.Errorf("Expected error code %s, got %+v", tt.wantCode, decoded.Error)
			}
		})
	}
}

func TestHandleResolveDegraded(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	// Unknown symbols degrade the result instead of failing the request.
	resp := postResolve(t, ts, ResolveRequest{Formula: "ZzO2"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	var result resolve.Result
	decodeData(t, decoded, &result)

	if len(result.Unresolved) != 1 || result.Unresolved[0] != "Zz" {
		t.Errorf("Expected unresolved [Zz], got %v", result.Unresolved)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected warnings on a degraded result")
	}
	if result.Mass != nil {
		t.Error("Expected no mass when a symbol is unresolved")
	}
}

func TestHandleResolveInvalidJSON(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Post(ts.URL+"/v1/resolve", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("POST /v1/resolve failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	if decoded.Error == nil || decoded.Error.Code != "INVALID_REQUEST" {
		t.Errorf("Expected INVALID_REQUEST error, got %+v", decoded.Error)
	}
}

func TestHandleResolveMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/resolve")
	if err != nil {
		t.Fatalf("GET /v1/resolve failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestHandleElement(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/elements/O")
	if err != nil {
		t.Fatalf("GET /v1/elements/O failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	var el chemdata.Element
	decodeData(t, decoded, &el)

	if el.Symbol != "O" {
		t.Errorf("Expected symbol O, got %s", el.Symbol)
	}
	if el.Name != "Oxygen" {
		t.Errorf("Expected name Oxygen, got %s", el.Name)
	}
	if el.Mass == nil {
		t.Error("Expected a tabulated mass for O")
	}
}

func TestHandleElementByName(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/elements/oxygen")
	if err != nil {
		t.Fatalf("GET /v1/elements/oxygen failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	var el chemdata.Element
	decodeData(t, decoded, &el)

	if el.Symbol != "O" {
		t.Errorf("Expected symbol O, got %s", el.Symbol)
	}
}

func TestHandleElementNotFound(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/elements/Zz")
	if err != nil {
		t.Fatalf("GET /v1/elements/Zz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	if decoded.Error == nil || decoded.Error.Code != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND error, got %+v", decoded.Error)
	}
}

func TestHandleElementMissingSymbol(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/elements/")
	if err != nil {
		t.Fatalf("GET /v1/elements/ failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestHandleIon(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/ions/SO4")
	if err != nil {
		t.Fatalf("GET /v1/ions/SO4 failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	var ion chemdata.PolyatomicIon
	decodeData(t, decoded, &ion)

	if ion.Key != "SO4" {
		t.Errorf("Expected key SO4, got %s", ion.Key)
	}
	if ion.Charge != -2 {
		t.Errorf("Expected charge -2, got %d", ion.Charge)
	}
}

func TestHandleIonBySynonym(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/ions/sulfate")
	if err != nil {
		t.Fatalf("GET /v1/ions/sulfate failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	decoded := decodeResponse(t, resp.Body)
	var ion chemdata.PolyatomicIon
	decodeData(t, decoded, &ion)

	if ion.Key != "SO4" {
		t.Errorf("Expected key SO4, got %s", ion.Key)
	}
}

func TestHandleIonNotFound(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/v1/ions/Qqq1")
	if err != nil {
		t.Fatalf("GET /v1/ions/Qqq1 failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestHandleStrength(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	tests := []struct {
		species      string
		wantAcidity  resolve.Strength
		wantBasicity resolve.Strength
		wantKa       float64
	}{
		{"HCl", resolve.StrengthStrong, resolve.StrengthUnknown, 0},
		{"CH3COOH", resolve.StrengthWeak, resolve.StrengthUnknown, 1.8e-5},
		{"NH3", resolve.StrengthNegligible, resolve.StrengthWeak, 0},
	}

	for _, tt := range tests {
		t.Run(tt.species, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/v1/strength/" + tt.species)
			if err != nil {
				t.Fatalf("GET /v1/strength/%s failed: %v", tt.species, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", resp.StatusCode)
			}

			decoded := decodeResponse(t, resp.Body)
			var info StrengthInfo
			decodeData(t, decoded, &info)

			if info.Species != tt.species {
				t.Errorf("Expected species %s, got %s", tt.species, info.Species)
			}
			if info.Acidity.Strength != tt.wantAcidity {
				t.Errorf("Expected acidity %s, got %s", tt.wantAcidity, info.Acidity.Strength)
			}
			if info.Basicity.Strength != tt.wantBasicity {
				t.Errorf("Expected basicity %s, got %s", tt.wantBasicity, info.Basicity.Strength)
			}
			if tt.wantKa != 0 {
				if info.Acidity.Constant == nil || *info.Acidity.Constant != tt.wantKa {
					t.Errorf("Expected Ka %v, got %v", tt.wantKa, info.Acidity.Constant)
				}
			}
		})
	}
}

func TestHandleStrengthNotFound(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	// KBr appears in neither dissociation table.
	resp, err := http.Get(ts.URL + "/v1/strength/KBr")
	if err != nil {
		t.Fatalf("GET /v1/strength/KBr failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("Expected X-Content-Type-Options=nosniff, got %s", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header on response")
	}
}

func TestCORSHeadersApplied(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Origin", "http://example.com")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin=*, got %s", got)
	}
}

func TestRateLimitApplied(t *testing.T) {
	_, ts := newTestServer(t, Config{
		RateLimitRequests: 60,
		RateLimitBurst:    2,
	})

	var lastStatus int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz failed: %v", err)
		}
		lastStatus = resp.StatusCode
		resp.Body.Close()
	}

	if lastStatus != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 after burst exhausted, got %d", lastStatus)
	}
}

func TestResolveCaching(t *testing.T) {
	s, ts := newTestServer(t, Config{})

	for i := 0; i < 2; i++ {
		resp := postResolve(t, ts, ResolveRequest{Formula: "NaCl"})
		resp.Body.Close()
	}

	stats := s.Resolver().Stats()
	if stats.Hits == 0 {
		t.Error("Expected a cache hit on the repeated formula")
	}
}
