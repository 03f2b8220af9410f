package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"memgov/pkg/types"
)

type fakeService struct {
	status   types.StatusResponse
	runtime  types.RuntimeSettings
	resetErr error
	resets   int
}

func (f *fakeService) Status() types.StatusResponse   { return f.status }
func (f *fakeService) Runtime() types.RuntimeSettings { return f.runtime }
func (f *fakeService) Reset() error {
	f.resets++
	return f.resetErr
}

type teapotError struct{}

func (teapotError) Error() string   { return "not now" }
func (teapotError) StatusCode() int { return http.StatusConflict }

func newTestServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewMux(svc))
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusEndpoint(t *testing.T) {
	svc := &fakeService{status: types.StatusResponse{Tier: "balanced", BaseTier: "balanced", BudgetBytes: 14 << 30}}
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("nosniff header = %q", got)
	}
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Tier != "balanced" || st.BudgetBytes != 14<<30 {
		t.Fatalf("unexpected body: %+v", st)
	}
}

func TestTierEndpoint(t *testing.T) {
	svc := &fakeService{runtime: types.RuntimeSettings{Tier: "low", Resolution: 384, ChunkCount: 6}}
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/tier")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var rs types.RuntimeSettings
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rs.Tier != "low" || rs.Resolution != 384 || rs.ChunkCount != 6 {
		t.Fatalf("unexpected body: %+v", rs)
	}
}

func TestResetEndpoint(t *testing.T) {
	svc := &fakeService{runtime: types.RuntimeSettings{Tier: "high"}}
	srv := newTestServer(t, svc)

	resp, err := http.Post(srv.URL+"/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if svc.resets != 1 {
		t.Fatalf("resets = %d, want 1", svc.resets)
	}
	var rs types.RuntimeSettings
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rs.Tier != "high" {
		t.Fatalf("runtime after reset: %+v", rs)
	}
}

func TestResetErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"http error", teapotError{}, http.StatusConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeService{resetErr: tc.err})
			resp, err := http.Post(srv.URL+"/reset", "application/json", nil)
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			var er types.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if er.Code != tc.want || er.Error == "" {
				t.Fatalf("error body: %+v", er)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestShutdownRejectsMutations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	defer SetBaseContext(context.Background())
	cancel()

	srv := newTestServer(t, &fakeService{})
	resp, err := http.Post(srv.URL+"/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	SetCORSOptions(true, []string{"https://ui.example.com"}, []string{"GET", "POST"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	srv := newTestServer(t, &fakeService{})
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/status", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Origin", "https://ui.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://ui.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}
