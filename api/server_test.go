package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/go-scrape-listings/models"
)

type listingsCall struct {
	ID       string
	Category models.TradeCategory
	Size     int
}

type fakeBackend struct {
	ids      map[string]string
	listings []listingsCall
	targets  []models.TargetEntity
	panicky  bool
}

func (f *fakeBackend) Resolve(_ context.Context, name string) (string, bool) {
	id, ok := f.ids[name]
	return id, ok
}

func (f *fakeBackend) Listings(_ context.Context, id string, category models.TradeCategory, size int) models.ListingStats {
	f.listings = append(f.listings, listingsCall{id, category, size})
	stats := models.EmptyStats()
	stats.Count = 2
	return stats
}

func (f *fakeBackend) Info(_ context.Context, id string) models.EntityInfo {
	if id != "12345" {
		return models.EntityInfo{}
	}
	return models.EntityInfo{Name: "Target A", Address: "Seoul", UnitCount: 1234}
}

func (f *fakeBackend) Summarize(_ context.Context, name string, size int) models.EntitySummary {
	if f.panicky {
		panic("boom")
	}
	summary := models.NewEntitySummary(name, size, time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC))
	if id, ok := f.ids[name]; ok {
		summary.Identifier = id
		summary.OK = true
	} else {
		summary.Error = "identifier not found"
	}
	return summary
}

func (f *fakeBackend) SummarizeAll(ctx context.Context, targets []models.TargetEntity) models.BatchResult {
	f.targets = targets
	result := models.BatchResult{}
	for _, t := range targets {
		for _, size := range t.SizeBrackets {
			result = append(result, models.BatchEntry{
				TargetID:      t.ID,
				Region:        t.Region,
				EntitySummary: f.Summarize(ctx, t.DisplayName, size),
			})
		}
	}
	return result
}

func newTestServer(backend *fakeBackend, targets []models.TargetEntity, opts ...Option) *httptest.Server {
	srv := NewServer(backend, backend, targets, opts...)
	return httptest.NewServer(srv.Handler())
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status=%d, want %d", url, resp.StatusCode, wantStatus)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type=%q", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func TestResolveEndpoint(t *testing.T) {
	backend := &fakeBackend{ids: map[string]string{"Target A": "12345"}}
	ts := newTestServer(backend, nil)
	defer ts.Close()

	var hit ResolveResponse
	getJSON(t, ts.URL+PathResolve+"?name=Target+A", http.StatusOK, &hit)
	if hit.Identifier == nil || *hit.Identifier != "12345" || !hit.OK {
		t.Fatalf("unexpected hit response: %+v", hit)
	}

	var raw map[string]any
	getJSON(t, ts.URL+PathResolve+"?name=Nowhere", http.StatusOK, &raw)
	if id, present := raw["identifier"]; !present || id != nil {
		t.Fatalf("identifier should be explicit null, got %v (present=%v)", id, present)
	}
	if raw["ok"] != false || raw["error"] != "identifier not found" {
		t.Fatalf("unexpected miss response: %v", raw)
	}
}

func TestBadParametersReturn400(t *testing.T) {
	ts := newTestServer(&fakeBackend{}, nil)
	defer ts.Close()

	cases := []string{
		PathResolve,
		PathResolve + "?name=%20",
		PathListings + "?category=sale&size=84",
		PathListings + "?identifier=1&category=lease&size=84",
		PathListings + "?identifier=1&category=sale&size=big",
		PathListings + "?identifier=1&category=sale&size=-3",
		PathInfo,
		PathSummary + "?name=Target+A",
	}
	for _, path := range cases {
		var body ErrorResponse
		getJSON(t, ts.URL+path, http.StatusBadRequest, &body)
		if body.OK || body.Error == "" {
			t.Fatalf("%s: unexpected body %+v", path, body)
		}
	}
}

func TestListingsEndpointParsesCategory(t *testing.T) {
	backend := &fakeBackend{}
	ts := newTestServer(backend, nil)
	defer ts.Close()

	var stats models.ListingStats
	getJSON(t, ts.URL+PathListings+"?identifier=12345&category=deposit&size=84", http.StatusOK, &stats)
	if stats.Count != 2 || stats.Sample == nil {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	want := []listingsCall{{ID: "12345", Category: models.TradeJeonse, Size: 84}}
	if diff := cmp.Diff(want, backend.listings); diff != "" {
		t.Fatalf("listings calls mismatch (-want +got):\n%s", diff)
	}
}

func TestInfoEndpointDefaults(t *testing.T) {
	ts := newTestServer(&fakeBackend{}, nil)
	defer ts.Close()

	var raw map[string]any
	getJSON(t, ts.URL+PathInfo+"?identifier=999", http.StatusOK, &raw)
	want := map[string]any{"name": "", "address": "", "unitCount": float64(0)}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Fatalf("info defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSummaryAndBatchEndpoints(t *testing.T) {
	backend := &fakeBackend{ids: map[string]string{"Target A": "12345"}}
	targets := []models.TargetEntity{{ID: "a", DisplayName: "Target A", Region: "Seoul", SizeBrackets: []int{59, 84}}}
	ts := newTestServer(backend, targets)
	defer ts.Close()

	var summary models.EntitySummary
	getJSON(t, ts.URL+PathSummary+"?name=Target+A&size=84", http.StatusOK, &summary)
	if !summary.OK || summary.Identifier != "12345" || summary.SizeBracket != 84 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var batch models.BatchResult
	getJSON(t, ts.URL+PathBatch, http.StatusOK, &batch)
	if len(batch) != 2 || batch[1].TargetID != "a" || batch[1].SizeBracket != 84 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if diff := cmp.Diff(targets, backend.targets); diff != "" {
		t.Fatalf("batch should use configured targets (-want +got):\n%s", diff)
	}
}

func TestEmptyBatchIsArray(t *testing.T) {
	ts := newTestServer(&fakeBackend{}, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + PathBatch)
	if err != nil {
		t.Fatalf("GET batch: %v", err)
	}
	defer resp.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("empty batch body=%s, want []", raw)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("listings_requests_total 0\n"))
	})
	ts := newTestServer(&fakeBackend{}, nil,
		WithBrowserState(func() string { return "ready" }),
		WithMetricsHandler(metrics),
	)
	defer ts.Close()

	var health HealthResponse
	getJSON(t, ts.URL+PathHealth, http.StatusOK, &health)
	if health.Status != "ok" || health.Browser != "ready" {
		t.Fatalf("unexpected health: %+v", health)
	}

	resp, err := http.Get(ts.URL + PathMetrics)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}
}

func TestPanicBecomes500(t *testing.T) {
	ts := newTestServer(&fakeBackend{panicky: true}, nil)
	defer ts.Close()

	var body ErrorResponse
	getJSON(t, ts.URL+PathSummary+"?name=Target+A&size=84", http.StatusInternalServerError, &body)
	if body.OK || body.Error != "internal error" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(&fakeBackend{}, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+PathBatch, "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST batch: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", resp.StatusCode)
	}
}
