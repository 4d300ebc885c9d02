package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/uma-arai/sbcntr-reservation/internal/api"
	"github.com/uma-arai/sbcntr-reservation/internal/heartbeat"
	"github.com/uma-arai/sbcntr-reservation/internal/model"
)

// MockReservationRepository はテスト用のモックリポジトリです
type MockReservationRepository struct {
	reservations  []model.Reservation
	findAllError  error
	findAllCalled int
}

func (m *MockReservationRepository) Save(ctx context.Context, reservation model.Reservation) (model.Reservation, error) {
	return reservation, nil
}

func (m *MockReservationRepository) DeleteAll(ctx context.Context) error {
	return nil
}

func (m *MockReservationRepository) FindAll(ctx context.Context) ([]model.Reservation, error) {
	m.findAllCalled++
	if m.findAllError != nil {
		return nil, m.findAllError
	}
	return m.reservations, nil
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestReservations(t *testing.T) {
	tests := []struct {
		name         string
		reservations []model.Reservation
		wantBody     string
	}{
		{
			name:         "空のストア",
			reservations: []model.Reservation{},
			wantBody:     `[]`,
		},
		{
			name: "全ての予約をIDと名前付きで返す",
			reservations: []model.Reservation{
				{ID: "1", ReservationName: "Josh"},
				{ID: "2", ReservationName: "Dr. Syer"},
			},
			wantBody: `[{"id":"1","reservationName":"Josh"},{"id":"2","reservationName":"Dr. Syer"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockReservationRepository{reservations: tt.reservations}
			e := api.NewRouter(repo, nil, api.Options{})

			rr := do(t, e, http.MethodGet, api.ReservationsPath)

			if rr.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Content-Type = %v, want application/json", ct)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}

			var decoded []model.Reservation
			if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
				t.Fatalf("decode JSON: %v", err)
			}
			if len(decoded) != len(tt.reservations) {
				t.Fatalf("decoded %d reservations, want %d", len(decoded), len(tt.reservations))
			}
			for i := range decoded {
				if decoded[i] != tt.reservations[i] {
					t.Errorf("reservation[%d] = %v, want %v", i, decoded[i], tt.reservations[i])
				}
			}
		})
	}
}

func TestReservations_QueriesStoreOnEveryRequest(t *testing.T) {
	repo := &MockReservationRepository{reservations: []model.Reservation{}}
	e := api.NewRouter(repo, nil, api.Options{})

	do(t, e, http.MethodGet, api.ReservationsPath)
	repo.reservations = []model.Reservation{{ID: "1", ReservationName: "Ada"}}
	rr := do(t, e, http.MethodGet, api.ReservationsPath)

	if repo.findAllCalled != 2 {
		t.Errorf("FindAll called %d times, want 2", repo.findAllCalled)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `[{"id":"1","reservationName":"Ada"}]` {
		t.Errorf("body = %s", got)
	}
}

func TestReservations_StorageFailure(t *testing.T) {
	repo := &MockReservationRepository{findAllError: errors.New("connection refused")}
	e := api.NewRouter(repo, nil, api.Options{})

	rr := do(t, e, http.MethodGet, api.ReservationsPath)

	if rr.Code < 500 || rr.Code > 599 {
		t.Errorf("status: got %d, want 5xx", rr.Code)
	}
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		name     string
		opts     api.Options
		method   string
		path     string
		wantCode int
	}{
		{"SSEは既定で無効", api.Options{}, http.MethodGet, api.SSEPath, http.StatusNotFound},
		{"POSTは許可されない", api.Options{}, http.MethodPost, api.ReservationsPath, http.StatusMethodNotAllowed},
		{"未定義のパス", api.Options{}, http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := api.NewRouter(&MockReservationRepository{}, heartbeat.New(), tt.opts)
			rr := do(t, e, tt.method, tt.path)
			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestSSE(t *testing.T) {
	hb := heartbeat.New(heartbeat.WithDelay(5 * time.Millisecond))
	e := api.NewRouter(&MockReservationRepository{}, hb, api.Options{SSEEnabled: true})

	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+api.SSEPath, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /sse: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %v, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var events []string
	for len(events) < 3 && scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			events = append(events, data)
		}
	}

	if len(events) != 3 {
		t.Fatalf("received %d events, want 3 (scan err: %v)", len(events), scanner.Err())
	}
	for _, ev := range events {
		if !strings.HasPrefix(ev, "Hello @ ") || !strings.HasSuffix(ev, "!") {
			t.Errorf("event = %q, want greeting", ev)
		}
	}
}
