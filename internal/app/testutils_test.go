package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/metinatakli/cinema-booking-core/api"
	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/metinatakli/cinema-booking-core/internal/keymutex"
	"github.com/metinatakli/cinema-booking-core/internal/mocks"
	"github.com/metinatakli/cinema-booking-core/internal/seatlock"
	"github.com/metinatakli/cinema-booking-core/internal/seatmap"
	"github.com/metinatakli/cinema-booking-core/internal/validator"
	"github.com/shopspring/decimal"
)

const testShowtimeID = 1

var testNow = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func newTestApplication(opts ...func(*Application)) *Application {
	app := &Application{
		config:         Config{Env: "test"},
		validator:      validator.NewValidator(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessionManager: scs.New(),
		metrics:        newMetrics(),
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// testStack is the real seat map and lock manager over an in-memory seat repository.
type testStack struct {
	seatRepo *mocks.InMemorySeatRepo
	seats    *seatmap.SeatMap
	locks    *seatlock.Manager
	clock    *clock.Manual
}

func newTestStack() *testStack {
	c := clock.NewManual(testNow)

	repo := mocks.NewInMemorySeatRepo()
	repo.AddShowtime(testShowtimeID, decimal.NewFromInt(120000), "A1", "A2", "A3", "B1", "B2")

	seats := seatmap.New(repo, nil)
	locks := seatlock.NewManager(seatlock.NewMemoryStore(c), seats, keymutex.New(), seatlock.WithClock(c))
	seats.TrackLocks(locks)

	return &testStack{seatRepo: repo, seats: seats, locks: locks, clock: c}
}

func (s *testStack) close() {
	s.locks.Close()
}

func setupTestSession(t *testing.T, app *Application, r *http.Request, userId int, role domain.Role) *http.Request {
	ctx, err := app.sessionManager.Load(r.Context(), "session")
	if err != nil {
		t.Errorf("Failed to load session: %v", err)
	}

	app.sessionManager.Put(ctx, SessionKeyUserId.String(), userId)
	app.sessionManager.Put(ctx, SessionKeyRole.String(), string(role))

	return r.WithContext(ctx)
}

// executeRequest encodes body as JSON. A string body is sent as is.
func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		jsonData, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	if reader != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()

	return w, r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	switch tt.wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if tt.wantErrMessage != "" && !errorSet[tt.wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response %+v", tt.wantErrMessage, validationResp.ValidationErrors)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if tt.wantErrMessage != "" && errorResp.Message != tt.wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, tt.wantErrMessage)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
