package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/rentagraph/rentagraph/engine/booking"
	"github.com/rentagraph/rentagraph/engine/graph"
)

// --- Mock store session ---

type queueResult struct {
	records []*neo4j.Record
	idx     int
}

func (m *queueResult) Next(_ context.Context) bool {
	if m.idx < len(m.records) {
		m.idx++
		return true
	}
	return false
}

func (m *queueResult) Record() *neo4j.Record {
	return m.records[m.idx-1]
}

// queueSession serves scripted results in order across all opened sessions,
// then empty results.
type queueSession struct {
	results []*queueResult
	queries []string
}

func (s *queueSession) Run(_ context.Context, cypher string, _ map[string]any) (graph.CypherResult, error) {
	s.queries = append(s.queries, cypher)
	if len(s.results) == 0 {
		return &queueResult{}, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func (s *queueSession) Close(_ context.Context) error { return nil }

func (s *queueSession) ExecuteWrite(_ context.Context, work func(tx graph.CypherRunner) (any, error)) (any, error) {
	return work(s)
}

type queueOpener struct {
	session *queueSession
}

func (o *queueOpener) OpenSession(_ context.Context) graph.CypherSession {
	return o.session
}

func results(rs ...*queueResult) []*queueResult { return rs }

func rows(records ...*neo4j.Record) *queueResult {
	return &queueResult{records: records}
}

func nodeRow(props map[string]any) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"n"}, Values: []any{dbtype.Node{Props: props}}}
}

func idRow(id string) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"id"}, Values: []any{id}}
}

func reservationRow(id, pickup, ret string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"id", "pickup_date", "return_date"},
		Values: []any{id, pickup, ret},
	}
}

func userRow(id string) *neo4j.Record {
	return nodeRow(map[string]any{"id": id, "username": "alice", "email": "a@b.com", "role": "customer"})
}

func vehicleRow(id string) *neo4j.Record {
	return nodeRow(map[string]any{
		"id": id, "vehicle_type": "sedan", "brand": "Toyota",
		"daily_price": 45.0, "availability": true,
	})
}

func newTestAPI(scripted []*queueResult) (http.Handler, *queueSession) {
	sess := &queueSession{results: scripted}
	store := graph.NewWithOpener(&queueOpener{session: sess})
	bookings := booking.New(store, nil, booking.DefaultOptions(), nil)
	a := &api{store: store, bookings: bookings, log: slog.Default()}
	mux := http.NewServeMux()
	a.routes(mux)
	return mux, sess
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHandleHealth(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "GET", "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestGetVehicle(t *testing.T) {
	h, _ := newTestAPI(results(rows(vehicleRow("v1"))))
	rec := do(t, h, "GET", "/api/vehicles/v1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"brand":"Toyota"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestGetVehicleNotFound(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "GET", "/api/vehicles/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateVehicle(t *testing.T) {
	h, sess := newTestAPI(nil)
	rec := do(t, h, "POST", "/api/vehicles", `{"vehicle_type":"suv","brand":"Honda","daily_price":80}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var v struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.ID == "" {
		t.Error("expected a generated id")
	}
	if len(sess.queries) != 1 || !strings.Contains(sess.queries[0], "CREATE (n:Vehicle") {
		t.Errorf("queries = %v", sess.queries)
	}
}

func TestCreateVehicleInvalid(t *testing.T) {
	h, sess := newTestAPI(nil)
	rec := do(t, h, "POST", "/api/vehicles", `{"vehicle_type":"","brand":"Honda"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sess.queries) != 0 {
		t.Error("store should not be touched on a validation failure")
	}
}

func TestCreateVehicleBadJSON(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "POST", "/api/vehicles", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateReservation(t *testing.T) {
	h, sess := newTestAPI(results(
		rows(userRow("u1")),    // engine: user exists
		rows(vehicleRow("v1")), // engine: vehicle exists
		rows(idRow("v1")),      // tx: vehicle exists
		rows(idRow("u1")),      // tx: user exists
		rows(),                 // tx: no existing reservations
	))

	body := `{"user_id":"u1","vehicle_id":"v1","pickup_date":"2024-06-01T00:00:00","return_date":"2024-06-05T00:00:00"}`
	rec := do(t, h, "POST", "/api/reservations", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var res struct {
		ID     string `json:"id"`
		Pickup string `json:"pickup_date"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.ID == "" {
		t.Error("expected a reservation id")
	}
	if res.Pickup != "2024-06-01T00:00:00" {
		t.Errorf("pickup = %q", res.Pickup)
	}

	joined := strings.Join(sess.queries, "\n")
	if !strings.Contains(joined, "CREATE (r:Reservation") {
		t.Errorf("reservation node not created:\n%s", joined)
	}
	if !strings.Contains(joined, "availability = false") {
		t.Errorf("availability not cleared:\n%s", joined)
	}
}

func TestCreateReservationConflict(t *testing.T) {
	h, _ := newTestAPI(results(
		rows(userRow("u1")),
		rows(vehicleRow("v1")),
		rows(idRow("v1")),
		rows(idRow("u1")),
		rows(reservationRow("r1", "2024-06-03T00:00:00", "2024-06-08T00:00:00")),
	))

	body := `{"user_id":"u1","vehicle_id":"v1","pickup_date":"2024-06-01T00:00:00","return_date":"2024-06-05T00:00:00"}`
	rec := do(t, h, "POST", "/api/reservations", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestCreateReservationBadDates(t *testing.T) {
	h, sess := newTestAPI(nil)
	body := `{"user_id":"u1","vehicle_id":"v1","pickup_date":"01/06/2024","return_date":"2024-06-05T00:00:00"}`
	rec := do(t, h, "POST", "/api/reservations", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sess.queries) != 0 {
		t.Error("store should not be touched for malformed dates")
	}
}

func TestCreateReservationReversedInterval(t *testing.T) {
	h, _ := newTestAPI(nil)
	body := `{"user_id":"u1","vehicle_id":"v1","pickup_date":"2024-06-05T00:00:00","return_date":"2024-06-01T00:00:00"}`
	rec := do(t, h, "POST", "/api/reservations", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateReservationUnknownUser(t *testing.T) {
	h, _ := newTestAPI(results(rows())) // user lookup comes back empty
	body := `{"user_id":"ghost","vehicle_id":"v1","pickup_date":"2024-06-01T00:00:00","return_date":"2024-06-05T00:00:00"}`
	rec := do(t, h, "POST", "/api/reservations", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestCheckOverlap(t *testing.T) {
	h, _ := newTestAPI(results(
		rows(reservationRow("r1", "2024-06-03T00:00:00", "2024-06-08T00:00:00")),
	))
	body := `{"user_id":"u1","vehicle_id":"v1","pickup_date":"2024-06-01T00:00:00","return_date":"2024-06-05T00:00:00"}`
	rec := do(t, h, "POST", "/api/reservations/check", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"overlap":true`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestCheckOverlapFree(t *testing.T) {
	h, _ := newTestAPI(nil) // no reservations
	body := `{"user_id":"u1","vehicle_id":"v1","pickup_date":"2024-06-01T00:00:00","return_date":"2024-06-05T00:00:00"}`
	rec := do(t, h, "POST", "/api/reservations/check", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"overlap":false`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestCancelReservation(t *testing.T) {
	h, sess := newTestAPI(results(
		rows(idRow("r1")), // reservation exists
		rows(&neo4j.Record{Keys: []string{"vehicle_id"}, Values: []any{"v1"}}),
		rows(), // no remaining reservations
	))

	rec := do(t, h, "DELETE", "/api/reservations/r1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(strings.Join(sess.queries, "\n"), "DETACH DELETE") {
		t.Errorf("queries = %v", sess.queries)
	}
}

func TestCancelReservationNotFound(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "DELETE", "/api/reservations/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateUser(t *testing.T) {
	h, _ := newTestAPI(results(
		rows(&neo4j.Record{Keys: []string{"count"}, Values: []any{int64(0)}}), // email free
	))
	rec := do(t, h, "POST", "/api/users", `{"username":"alice","email":"alice@example.com","role":"customer"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestCreateUserEmailTaken(t *testing.T) {
	h, _ := newTestAPI(results(
		rows(&neo4j.Record{Keys: []string{"count"}, Values: []any{int64(1)}}),
	))
	rec := do(t, h, "POST", "/api/users", `{"username":"alice","email":"alice@example.com"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestCreateUserInvalidRole(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "POST", "/api/users", `{"username":"alice","email":"alice@example.com","role":"root"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVehicleReservations(t *testing.T) {
	h, _ := newTestAPI(results(rows(
		reservationRow("r1", "2024-06-01T00:00:00", "2024-06-05T00:00:00"),
	)))
	rec := do(t, h, "GET", "/api/vehicles/v1/reservations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"pickup_date":"2024-06-01T00:00:00"`) {
		t.Errorf("dates should use the store layout, body = %s", rec.Body)
	}
}

func TestListReservations(t *testing.T) {
	h, _ := newTestAPI(results(rows(
		reservationRow("r1", "2024-06-01T00:00:00", "2024-06-05T00:00:00"),
		reservationRow("r2", "2024-07-01T00:00:00", "2024-07-03T00:00:00"),
	)))
	rec := do(t, h, "GET", "/api/reservations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"id":"r2"`) {
		t.Errorf("body should list both reservations, body = %s", rec.Body)
	}
}

func TestCreateReview(t *testing.T) {
	h, _ := newTestAPI(results(
		rows(idRow("u1")),
		rows(idRow("v1")),
	))
	rec := do(t, h, "POST", "/api/reviews", `{"user_id":"u1","vehicle_id":"v1","rating":5,"comment":"great"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestCreateReviewBadRating(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "POST", "/api/reviews", `{"user_id":"u1","vehicle_id":"v1","rating":6}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListVehiclesFilterValidation(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "GET", "/api/vehicles?min_price=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTopVehiclesBadLimit(t *testing.T) {
	h, _ := newTestAPI(nil)
	rec := do(t, h, "GET", "/api/vehicles/top?limit=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

// --- Config ---

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Neo4jURL != "neo4j://localhost:7687" {
		t.Errorf("Neo4jURL = %q", cfg.Neo4jURL)
	}
	if cfg.NATSURL != "" {
		t.Errorf("NATSURL should default to empty, got %q", cfg.NATSURL)
	}
	if cfg.Restore != "idle" {
		t.Errorf("Restore = %q", cfg.Restore)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("NEO4J_URL", "neo4j://db:7687")
	t.Setenv("NATS_URL", "nats://bus:4222")
	t.Setenv("RESTORE_POLICY", "always")

	cfg := loadConfig()
	if cfg.Port != "3000" || cfg.Neo4jURL != "neo4j://db:7687" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.NATSURL != "nats://bus:4222" || cfg.Restore != "always" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("RENTAGRAPH_TEST_KEY", "set")
	if envOr("RENTAGRAPH_TEST_KEY", "fallback") != "set" {
		t.Error("expected env value")
	}
	if envOr("RENTAGRAPH_TEST_MISSING", "fallback") != "fallback" {
		t.Error("expected fallback")
	}
}
