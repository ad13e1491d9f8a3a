package smartcity

import (
	"errors"
	"strings"
	"testing"

	"github.com/smart-mobility/smartcity-go/pkg/rdf"
)

func seededStore(t *testing.T) *rdf.Store {
	t.Helper()
	store := rdf.NewStore(nil)
	store.Bind("smartcity", NS)
	store.Bind("ont", OntNS)
	for parent, children := range ClassHierarchy {
		for _, child := range children {
			store.Add(rdf.Triple{
				Subject:   rdf.IRI(child),
				Predicate: rdf.IRI(rdf.RDFSSubClass),
				Object:    rdf.IRI(parent),
			})
		}
	}
	return store
}

func intPtr(n int) *int           { return &n }
func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestCreateTransportThenList(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)

	id, err := svc.CreateTransport(TransportInput{
		Type:          "Bus",
		Nom:           "Ligne 42",
		Capacite:      intPtr(90),
		EstElectrique: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasPrefix(id, "Bus_") {
		t.Errorf("identifier %q does not follow the Type_name convention", id)
	}

	records, err := svc.ListTransports()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var found Record
	for _, r := range records {
		if r["id"] == id {
			found = r
			break
		}
	}
	if found == nil {
		t.Fatalf("created transport %q missing from listing %v", id, records)
	}
	if found["nom"] != "Ligne 42" || found["capacite"] != "90" || found["electrique"] != "true" {
		t.Errorf("fields not echoed back: %v", found)
	}
	if found["type"] != "Bus" {
		t.Errorf("expected leaf type Bus, got %q", found["type"])
	}
}

func TestCreateTransportRejectsUnknownType(t *testing.T) {
	svc := NewService(seededStore(t), "", nil)
	if _, err := svc.CreateTransport(TransportInput{Type: "Fusée"}); err == nil {
		t.Error("expected rejection of unknown transport type")
	}
}

func TestUpdateMissingEntityLeavesStoreUntouched(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)
	before := store.Len()

	err := svc.UpdateTransport("Bus_inexistant", TransportInput{Nom: "X"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if store.Len() != before {
		t.Errorf("store mutated on failed update: %d -> %d triples", before, store.Len())
	}
}

func TestUpdateReplacesFieldValues(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)
	id, _ := svc.CreateTransport(TransportInput{Type: "Bus", Nom: "Ligne 1", Capacite: intPtr(50)})

	if err := svc.UpdateTransport(id, TransportInput{Capacite: intPtr(60)}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	subj := rdf.IRI(NS + id)
	pred := rdf.IRI(PropCapacite)
	matches := store.Match(&subj, &pred, nil)
	if len(matches) != 1 {
		t.Fatalf("expected exactly one capacity triple, got %d", len(matches))
	}
	if matches[0].Object.Value != "60" {
		t.Errorf("expected capacity 60, got %q", matches[0].Object.Value)
	}
}

func TestDeleteRemovesEntityAndReferences(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)
	id, _ := svc.CreateTransport(TransportInput{Type: "Vélo", Nom: "VLS 7"})

	// Another entity referencing the bike.
	userID, _ := svc.CreateUser(UserInput{Type: "Citoyen", Nom: "Alice"})
	store.Add(rdf.Triple{
		Subject:   rdf.IRI(NS + userID),
		Predicate: rdf.IRI(PropUtiliseTransport),
		Object:    rdf.IRI(NS + id),
	})

	if err := svc.DeleteTransport(id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if store.HasSubject(NS + id) {
		t.Error("entity triples survived deletion")
	}
	if store.ContainsIRI(NS + id) {
		t.Error("dangling reference survived deletion")
	}
	if err := svc.DeleteTransport(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should be not-found, got %v", err)
	}
}

func TestMintIRIFallsBackOnCollision(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)
	first, _ := svc.CreateTransport(TransportInput{Type: "Bus", Nom: "Ligne 9"})
	second, _ := svc.CreateTransport(TransportInput{Type: "Bus", Nom: "Ligne 9"})
	if first == second {
		t.Errorf("identifier collision: %q", first)
	}
	if !strings.HasPrefix(second, "Bus_") {
		t.Errorf("fallback identifier %q lost the type prefix", second)
	}
}

func TestStatsCountsSubclassInstances(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)
	svc.CreateTransport(TransportInput{Type: "Bus", Nom: "Ligne 1"})
	svc.CreateTransport(TransportInput{Type: "Métro", Nom: "M4"})
	svc.CreateUser(UserInput{Type: "Touriste", Nom: "Bob"})

	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats["transports"] != 2 {
		t.Errorf("expected 2 transports, got %d", stats["transports"])
	}
	if stats["utilisateurs"] != 1 {
		t.Errorf("expected 1 user, got %d", stats["utilisateurs"])
	}
	if stats["stations"] != 0 {
		t.Errorf("expected 0 stations, got %d", stats["stations"])
	}
}

func TestSearchMatchesNamesCaseInsensitive(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)
	svc.CreateTransport(TransportInput{Type: "Bus", Nom: "Ligne Centrale"})
	svc.CreateStation(StationInput{Type: "Parking", Nom: "Parking Central", Latitude: floatPtr(48.85), Longitude: floatPtr(2.35)})
	svc.CreateUser(UserInput{Type: "Citoyen", Nom: "Charles"})

	records, err := svc.Search("central", "")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected bus and parking, got %d: %v", len(records), records)
	}

	records, err = svc.Search("central", "transports")
	if err != nil {
		t.Fatalf("scoped search failed: %v", err)
	}
	if len(records) != 1 || records[0]["type"] != "Bus" {
		t.Fatalf("expected only the bus, got %v", records)
	}
}

func TestListZonesCountsTransports(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)

	zone := NS + "Zone_Centre"
	store.Add(rdf.Triple{Subject: rdf.IRI(zone), Predicate: rdf.IRI(rdf.RDFType), Object: rdf.IRI(ClassCentreVille)})
	store.Add(rdf.Triple{Subject: rdf.IRI(zone), Predicate: rdf.IRI(PropNom), Object: rdf.Literal("Centre-ville")})

	busID, _ := svc.CreateTransport(TransportInput{Type: "Bus", Nom: "Ligne 3"})
	metroID, _ := svc.CreateTransport(TransportInput{Type: "Métro", Nom: "M1"})
	for _, id := range []string{busID, metroID} {
		store.Add(rdf.Triple{Subject: rdf.IRI(NS + id), Predicate: rdf.IRI(PropCirculeDans), Object: rdf.IRI(zone)})
	}

	emptyZone := NS + "Zone_Nord"
	store.Add(rdf.Triple{Subject: rdf.IRI(emptyZone), Predicate: rdf.IRI(rdf.RDFType), Object: rdf.IRI(ClassBanlieue)})

	records, err := svc.ListZones()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 zones, got %d: %v", len(records), records)
	}
	counts := map[string]string{}
	for _, r := range records {
		counts[r["id"]] = r["totalTransports"]
	}
	if counts["Zone_Centre"] != "2" {
		t.Errorf("expected 2 transports in Zone_Centre, got %q", counts["Zone_Centre"])
	}
	if counts["Zone_Nord"] != "0" {
		t.Errorf("expected 0 transports in Zone_Nord, got %q", counts["Zone_Nord"])
	}
}

func TestListEventsOrderedByDateDescending(t *testing.T) {
	store := seededStore(t)
	svc := NewService(store, "", nil)
	svc.CreateEvent(EventInput{Type: "Accident", Gravite: intPtr(4), Date: "2026-08-10", Description: "collision"})
	svc.CreateEvent(EventInput{Type: "Embouteillage", Gravite: intPtr(2), Date: "2026-08-25", Description: "bouchon"})

	records, err := svc.ListEvents()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 events, got %d", len(records))
	}
	if records[0]["date"] != "2026-08-25" {
		t.Errorf("expected newest event first, got %v", records[0])
	}
}
