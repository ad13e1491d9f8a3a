package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/smart-mobility/smartcity-go/pkg/ai"
	"github.com/smart-mobility/smartcity-go/pkg/answer"
	"github.com/smart-mobility/smartcity-go/pkg/auth"
	"github.com/smart-mobility/smartcity-go/pkg/config"
	"github.com/smart-mobility/smartcity-go/pkg/nlq"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
	"github.com/smart-mobility/smartcity-go/pkg/smartcity"
)

type testEnv struct {
	server *Server
	model  *ai.MockClient
	store  *rdf.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := rdf.NewStore(nil)
	store.Bind("smartcity", smartcity.NS)
	store.Bind("ont", smartcity.OntNS)
	for parent, children := range smartcity.ClassHierarchy {
		for _, child := range children {
			store.Add(rdf.Triple{
				Subject:   rdf.IRI(child),
				Predicate: rdf.IRI(rdf.RDFSSubClass),
				Object:    rdf.IRI(parent),
			})
		}
	}

	authStore, err := auth.NewStore(filepath.Join(t.TempDir(), "auth.db"), nil)
	if err != nil {
		t.Fatalf("failed to open auth store: %v", err)
	}
	t.Cleanup(func() { authStore.Close() })
	if err := authStore.EnsureUser("admin", "secret", "Admin"); err != nil {
		t.Fatalf("failed to seed admin user: %v", err)
	}

	rewriter := rewrite.New(store, nil)
	normalizer := answer.NewNormalizer(store, rdf.RDFSLabel, smartcity.PropNom, smartcity.PropNomStation)
	controller := answer.NewController(store, rewriter, normalizer, nil)
	model := ai.NewMockClient()
	bridge := nlq.NewBridge(store, model, rewriter, controller, nil)
	service := smartcity.NewService(store, "", nil)

	server := NewServer(Deps{
		Config:     config.Default(),
		Store:      store,
		Service:    service,
		Rewriter:   rewriter,
		Controller: controller,
		Bridge:     bridge,
		Auth:       authStore,
		Logger:     nil,
	})
	return &testEnv{server: server, model: model, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("unexpected health payload: %v", body)
	}
}

func TestCreateThenListTransport(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/transports", map[string]any{
		"type": "Bus",
		"nom":  "Ligne 7",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create failed with %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeMap(t, rec)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("no id in create response: %v", created)
	}

	rec = env.do(t, http.MethodGet, "/api/transports", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed with %d", rec.Code)
	}
	body := decodeMap(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected one transport, got %v", body["count"])
	}
}

func TestUpdateMissingEntityReturns404(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPut, "/api/users/Conducteur_nobody", map[string]any{
		"nom": "Personne",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteMissingEntityReturns404(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodDelete, "/api/stations/Station_missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestQueryEndpointRewritesAndExecutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/transports", map[string]any{
		"type": "Bus", "nom": "Ligne 1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed create failed: %s", rec.Body.String())
	}

	// Direct rdf:type matches on the parent class find nothing until the
	// rewrite pipeline adds the subclass path.
	query := fmt.Sprintf(
		"SELECT ?t WHERE { ?t <%s> <%s> }",
		rdf.RDFType, smartcity.ClassTransport)
	rec = env.do(t, http.MethodPost, "/api/query", map[string]any{"query": query})
	if rec.Code != http.StatusOK {
		t.Fatalf("query failed with %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected one row, got %v", body)
	}
}

func TestQueryResultsResolveEntityNames(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/transports", map[string]any{
		"type": "Bus", "nom": "Ligne 5",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed create failed: %s", rec.Body.String())
	}

	query := fmt.Sprintf("SELECT ?t WHERE { ?t <%s> <%s> }", rdf.RDFType, smartcity.ClassBus)
	rec = env.do(t, http.MethodPost, "/api/query", map[string]any{"query": query})
	if rec.Code != http.StatusOK {
		t.Fatalf("query failed with %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	results, _ := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected one row, got %v", body)
	}
	row, _ := results[0].(map[string]any)
	// The URI must resolve through the entity's name property, not fall
	// back to its local name.
	if row["t"] != "Ligne 5" {
		t.Errorf("expected resolved name 'Ligne 5', got %v", row["t"])
	}
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/query", map[string]any{"query": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestNLQueryEndToEndWithMockModel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/transports", map[string]any{
		"type": "Bus", "nom": "Ligne 9",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("seed create failed: %s", rec.Body.String())
	}

	env.model.QueueResponse(fmt.Sprintf(
		"```sparql\nSELECT ?t WHERE { ?t <%s> <%s> }\n```",
		rdf.RDFType, smartcity.ClassBus))
	env.model.QueueResponse("Un bus circule sur le réseau.")

	rec = env.do(t, http.MethodPost, "/api/ai/natural-query", map[string]any{
		"question": "Quels sont les bus disponibles ?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("nl-query failed with %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeMap(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("expected one result, got %v", body)
	}
	if body["provenance"] != string(rewrite.ProvenanceModel) {
		t.Errorf("unexpected provenance %v", body["provenance"])
	}
}

func TestLoginSuccessAndFailure(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "admin", "password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid credentials, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"username": "admin", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad credentials, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/transports", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
