package app

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/metinatakli/cinema-booking-core/api"
)

func TestGetHealth(t *testing.T) {
	app := newTestApplication()

	w, r := executeRequest(t, http.MethodGet, "/healthcheck", nil)

	app.Routes().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var response api.HealthcheckResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	want := api.HealthcheckResponse{
		Status:     "UP",
		SystemInfo: api.SystemInfo{Version: version, Environment: "test"},
	}

	if diff := cmp.Diff(want, response); diff != "" {
		t.Errorf("Response mismatch (-want +got):\n%s", diff)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApplication()
	app.metrics.holds.WithLabelValues("conflict").Inc()

	w, r := executeRequest(t, http.MethodGet, "/metrics", nil)

	app.Routes().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	if body := w.Body.String(); !strings.Contains(body, `seat_holds_total{outcome="conflict"} 1`) {
		t.Errorf("metrics output does not contain the hold counter:\n%s", body)
	}
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApplication()

	w, r := executeRequest(t, http.MethodGet, "/movies", nil)

	app.Routes().ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}

	checkErrorResponse(t, w, struct {
		wantStatus     int
		wantErrMessage string
	}{
		wantStatus:     http.StatusNotFound,
		wantErrMessage: ErrNotFound,
	})
}
