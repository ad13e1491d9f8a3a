package smartcity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/metrics"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/sparql"
)

// ErrNotFound is returned for mutations targeting an unknown identifier.
// No partial mutation happens in that case.
var ErrNotFound = errors.New("entity not found")

// Record is a flat string projection of one result row. Unbound variables
// are absent from the map.
type Record map[string]string

// Service implements entity listing, search, statistics and CRUD over the
// shared graph. Every mutation persists the whole store back to the
// ontology file best-effort: a persistence failure is logged while the
// in-memory store keeps the mutation, a known consistency risk.
type Service struct {
	store       *rdf.Store
	engine      *sparql.Evaluator
	persistPath string
	logger      *zap.Logger
}

// NewService creates the domain service. An empty persistPath disables
// persistence entirely.
func NewService(store *rdf.Store, persistPath string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		engine:      sparql.NewEvaluator(store),
		persistPath: persistPath,
		logger:      logger,
	}
}

// Query exposes raw SPARQL execution for the generic query endpoint.
func (s *Service) Query(queryText string) (*sparql.QueryResult, error) {
	return s.engine.Query(queryText)
}

func (s *Service) persist() {
	metrics.GraphTriples.Set(float64(s.store.Len()))
	if s.persistPath == "" {
		return
	}
	if err := s.store.SaveFile(s.persistPath); err != nil {
		s.logger.Error("failed to persist graph", zap.String("path", s.persistPath), zap.Error(err))
	}
}

func rowsToRecords(res *sparql.QueryResult) []Record {
	out := make([]Record, 0, len(res.Bindings))
	for _, row := range res.Bindings {
		if len(row) == 0 {
			continue
		}
		rec := make(Record, len(row))
		for name, bv := range row {
			rec[name] = bv.Value
		}
		out = append(out, rec)
	}
	return out
}

// Stats counts instances per top-level class, subclass-aware.
func (s *Service) Stats() (map[string]int, error) {
	classes := map[string]string{
		"utilisateurs": ClassUtilisateur,
		"transports":   ClassTransport,
		"stations":     ClassStation,
		"trajets":      ClassTrajet,
		"evenements":   ClassEvenement,
		"zones":        ClassZoneUrbaine,
		"capteurs":     ClassCapteur,
	}
	out := make(map[string]int, len(classes))
	for key, class := range classes {
		query := fmt.Sprintf(`SELECT (COUNT(DISTINCT ?s) AS ?n) WHERE { ?s <%s>/<%s>* <%s> }`,
			rdf.RDFType, rdf.RDFSSubClass, class)
		res, err := s.engine.Query(query)
		if err != nil {
			return nil, fmt.Errorf("stats query for %s failed: %w", key, err)
		}
		if len(res.Bindings) == 1 {
			out[key], _ = strconv.Atoi(res.Bindings[0]["n"].Value)
		}
	}
	return out, nil
}

const listPrefixes = `PREFIX smartcity: <` + NS + `>
PREFIX ont: <` + OntNS + `>
`

// ListTransports returns every transport instance with its leaf type and
// optional properties.
func (s *Service) ListTransports() ([]Record, error) {
	res, err := s.engine.Query(listPrefixes + `SELECT ?id ?type ?nom ?capacite ?immatriculation ?vitesseMax ?electrique WHERE {
	?t rdf:type ?cls .
	?cls rdfs:subClassOf smartcity:Transport .
	OPTIONAL { ?t ont:Nom ?nom }
	OPTIONAL { ?t ont:Capacite ?capacite }
	OPTIONAL { ?t ont:Immatriculation ?immatriculation }
	OPTIONAL { ?t ont:VitesseMax ?vitesseMax }
	OPTIONAL { ?t ont:estElectrique ?electrique }
	BIND(STRAFTER(STR(?t), "#") AS ?id)
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
}`)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(res), nil
}

// ListUsers returns every user with type, name, age and email.
func (s *Service) ListUsers() ([]Record, error) {
	res, err := s.engine.Query(listPrefixes + `SELECT ?id ?type ?nom ?age ?email WHERE {
	?u rdf:type ?cls .
	?cls rdfs:subClassOf smartcity:Utilisateur .
	OPTIONAL { ?u ont:Nom ?nom }
	OPTIONAL { ?u ont:Age ?age }
	OPTIONAL { ?u ont:Email ?email }
	BIND(STRAFTER(STR(?u), "#") AS ?id)
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
}`)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(res), nil
}

// ListStations returns every station with its coordinates and capacity.
func (s *Service) ListStations() ([]Record, error) {
	res, err := s.engine.Query(listPrefixes + `SELECT ?id ?type ?nom ?latitude ?longitude ?capacite WHERE {
	?st rdf:type ?cls .
	?cls rdfs:subClassOf smartcity:Station .
	OPTIONAL { ?st ont:aNomStation ?nom }
	OPTIONAL { ?st ont:aLatitude ?latitude }
	OPTIONAL { ?st ont:aLongitude ?longitude }
	OPTIONAL { ?st ont:Capacite ?capacite }
	BIND(STRAFTER(STR(?st), "#") AS ?id)
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
}`)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(res), nil
}

// ListTrajets returns every trip with its endpoints and metrics.
func (s *Service) ListTrajets() ([]Record, error) {
	res, err := s.engine.Query(listPrefixes + `SELECT ?id ?depart ?arrivee ?duree ?distance ?prix WHERE {
	?tr rdf:type smartcity:Trajet .
	OPTIONAL { ?tr smartcity:partDe ?depart }
	OPTIONAL { ?tr smartcity:arriveA ?arrivee }
	OPTIONAL { ?tr ont:aDuree ?duree }
	OPTIONAL { ?tr ont:aDistance ?distance }
	OPTIONAL { ?tr ont:aPrix ?prix }
	BIND(STRAFTER(STR(?tr), "#") AS ?id)
}`)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(res), nil
}

// ListEvents returns traffic events ordered by descending date string.
func (s *Service) ListEvents() ([]Record, error) {
	res, err := s.engine.Query(listPrefixes + `SELECT ?id ?type ?gravite ?date ?description WHERE {
	?e rdf:type ?cls .
	?cls rdfs:subClassOf smartcity:EvenementDeCirculation .
	OPTIONAL { ?e ont:aGravite ?gravite }
	OPTIONAL { ?e ont:aDateEvenement ?date }
	OPTIONAL { ?e ont:aDescription ?description }
	BIND(STRAFTER(STR(?e), "#") AS ?id)
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
} ORDER BY DESC(?date)`)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(res), nil
}

// ListZones returns every urban zone with its distinct transport count.
func (s *Service) ListZones() ([]Record, error) {
	res, err := s.engine.Query(listPrefixes + `SELECT ?id ?type ?nom (COUNT(DISTINCT ?t) AS ?totalTransports) WHERE {
	?z rdf:type ?cls .
	?cls rdfs:subClassOf smartcity:ZoneUrbaine .
	OPTIONAL { ?z ont:Nom ?nom }
	OPTIONAL { ?t smartcity:circuleDans ?z }
	BIND(STRAFTER(STR(?z), "#") AS ?id)
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
} GROUP BY ?id ?type ?nom`)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(res), nil
}

// Search finds entities whose name contains the term, case-insensitive.
// A category of "users" or "transports" narrows the match to that class
// tree; anything else searches across all named entities.
func (s *Service) Search(term, category string) ([]Record, error) {
	needle := strings.ToLower(term)

	var query string
	switch category {
	case "users":
		query = listPrefixes + fmt.Sprintf(`SELECT ?id ?type ?nom ?email WHERE {
	?s rdf:type ?cls .
	?cls rdfs:subClassOf smartcity:Utilisateur .
	?s ont:Nom ?nom .
	OPTIONAL { ?s ont:Email ?email }
	FILTER(CONTAINS(LCASE(?nom), %q) || CONTAINS(LCASE(?email), %q))
	BIND(STRAFTER(STR(?s), "#") AS ?id)
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
}`, needle, needle)
	case "transports":
		query = listPrefixes + fmt.Sprintf(`SELECT ?id ?type ?nom ?capacite WHERE {
	?s rdf:type ?cls .
	?cls rdfs:subClassOf smartcity:Transport .
	?s ont:Nom ?nom .
	OPTIONAL { ?s ont:Capacite ?capacite }
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
	FILTER(CONTAINS(LCASE(?nom), %q) || CONTAINS(LCASE(?type), %q))
	BIND(STRAFTER(STR(?s), "#") AS ?id)
}`, needle, needle)
	default:
		query = listPrefixes + fmt.Sprintf(`SELECT ?id ?type ?nom WHERE {
	?s rdf:type ?cls .
	?s ?nameProp ?nom .
	FILTER(?nameProp = ont:Nom || ?nameProp = ont:aNomStation)
	FILTER(CONTAINS(LCASE(?nom), %q))
	BIND(STRAFTER(STR(?s), "#") AS ?id)
	BIND(STRAFTER(STR(?cls), "#") AS ?type)
}`, needle)
	}

	res, err := s.engine.Query(query)
	if err != nil {
		return nil, err
	}
	return rowsToRecords(res), nil
}

// Identifier minting: <TypeLocalName>_<sanitized-name>, falling back to a
// short random suffix when the name is empty or the identifier is taken.
func (s *Service) mintIRI(class, nom string) string {
	base := rdf.LocalName(class)
	if slug := sanitizeSlug(nom); slug != "" {
		candidate := NS + base + "_" + slug
		if !s.store.HasSubject(candidate) {
			return candidate
		}
	}
	return NS + base + "_" + uuid.NewString()[:8]
}

func sanitizeSlug(nom string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(nom) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// field couples a predicate with the literal or IRI value to store.
type field struct {
	pred string
	term rdf.Term
}

func literalField(pred, value string) field {
	return field{pred: pred, term: rdf.Literal(value)}
}

func intField(pred string, value int) field {
	return field{pred: pred, term: rdf.TypedLiteral(strconv.Itoa(value), rdf.XSDInteger)}
}

func floatField(pred string, value float64) field {
	return field{pred: pred, term: rdf.TypedLiteral(strconv.FormatFloat(value, 'f', -1, 64), rdf.XSDDecimal)}
}

func boolField(pred string, value bool) field {
	return field{pred: pred, term: rdf.TypedLiteral(strconv.FormatBool(value), rdf.XSDBoolean)}
}

func iriField(pred, iri string) field {
	return field{pred: pred, term: rdf.IRI(iri)}
}

func (s *Service) createEntity(class, nom string, fields []field) string {
	iri := s.mintIRI(class, nom)
	subj := rdf.IRI(iri)
	s.store.Add(rdf.Triple{Subject: subj, Predicate: rdf.IRI(rdf.RDFType), Object: rdf.IRI(class)})
	for _, f := range fields {
		s.store.Add(rdf.Triple{Subject: subj, Predicate: rdf.IRI(f.pred), Object: f.term})
	}
	s.persist()
	s.logger.Info("entity created", zap.String("iri", iri), zap.String("class", rdf.LocalName(class)))
	return rdf.LocalName(iri)
}

func (s *Service) updateEntity(id string, fields []field) error {
	iri := NS + id
	if !s.store.HasSubject(iri) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	subj := rdf.IRI(iri)
	for _, f := range fields {
		pred := rdf.IRI(f.pred)
		s.store.Remove(&subj, &pred, nil)
		s.store.Add(rdf.Triple{Subject: subj, Predicate: pred, Object: f.term})
	}
	s.persist()
	return nil
}

func (s *Service) deleteEntity(id string) error {
	iri := NS + id
	if !s.store.HasSubject(iri) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	subj := rdf.IRI(iri)
	s.store.Remove(&subj, nil, nil)
	// Dangling references from other entities are removed too.
	obj := rdf.IRI(iri)
	s.store.Remove(nil, nil, &obj)
	s.persist()
	return nil
}

// SetImageURL attaches or replaces the image URL of an entity.
func (s *Service) SetImageURL(id, url string) error {
	return s.updateEntity(id, []field{literalField(PropImageURL, url)})
}

// TransportInput carries the writable fields of a transport.
type TransportInput struct {
	Type            string `json:"type"`
	Nom             string `json:"nom"`
	Capacite        *int   `json:"capacite,omitempty"`
	Immatriculation string `json:"immatriculation,omitempty"`
	VitesseMax      *int   `json:"vitesseMax,omitempty"`
	EstElectrique   *bool  `json:"estElectrique,omitempty"`
	Zone            string `json:"zone,omitempty"`
}

func (in TransportInput) fields() []field {
	var fs []field
	if in.Nom != "" {
		fs = append(fs, literalField(PropNom, in.Nom))
	}
	if in.Capacite != nil {
		fs = append(fs, intField(PropCapacite, *in.Capacite))
	}
	if in.Immatriculation != "" {
		fs = append(fs, literalField(PropImmatriculation, in.Immatriculation))
	}
	if in.VitesseMax != nil {
		fs = append(fs, intField(PropVitesseMax, *in.VitesseMax))
	}
	if in.EstElectrique != nil {
		fs = append(fs, boolField(PropEstElectrique, *in.EstElectrique))
	}
	if in.Zone != "" {
		fs = append(fs, iriField(PropCirculeDans, NS+in.Zone))
	}
	return fs
}

// CreateTransport mints a new transport of a recognized leaf type.
func (s *Service) CreateTransport(in TransportInput) (string, error) {
	class, ok := TransportTypes[in.Type]
	if !ok {
		return "", fmt.Errorf("unknown transport type %q", in.Type)
	}
	return s.createEntity(class, in.Nom, in.fields()), nil
}

// UpdateTransport replaces the provided fields on an existing transport.
func (s *Service) UpdateTransport(id string, in TransportInput) error {
	return s.updateEntity(id, in.fields())
}

// DeleteTransport removes a transport and every reference to it.
func (s *Service) DeleteTransport(id string) error {
	return s.deleteEntity(id)
}

// UserInput carries the writable fields of a user.
type UserInput struct {
	Type     string `json:"type"`
	Nom      string `json:"nom"`
	Age      *int   `json:"age,omitempty"`
	Email    string `json:"email,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func (in UserInput) fields() []field {
	var fs []field
	if in.Nom != "" {
		fs = append(fs, literalField(PropNom, in.Nom))
	}
	if in.Age != nil {
		fs = append(fs, intField(PropAge, *in.Age))
	}
	if in.Email != "" {
		fs = append(fs, literalField(PropEmail, in.Email))
	}
	if in.ImageURL != "" {
		fs = append(fs, literalField(PropImageURL, in.ImageURL))
	}
	return fs
}

// CreateUser mints a new user of a recognized leaf type.
func (s *Service) CreateUser(in UserInput) (string, error) {
	class, ok := UserTypes[in.Type]
	if !ok {
		return "", fmt.Errorf("unknown user type %q", in.Type)
	}
	return s.createEntity(class, in.Nom, in.fields()), nil
}

// UpdateUser replaces the provided fields on an existing user.
func (s *Service) UpdateUser(id string, in UserInput) error {
	return s.updateEntity(id, in.fields())
}

// DeleteUser removes a user and every reference to it.
func (s *Service) DeleteUser(id string) error {
	return s.deleteEntity(id)
}

// StationInput carries the writable fields of a station.
type StationInput struct {
	Type      string   `json:"type"`
	Nom       string   `json:"nom"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Capacite  *int     `json:"capacite,omitempty"`
	ImageURL  string   `json:"imageUrl,omitempty"`
}

func (in StationInput) fields() []field {
	var fs []field
	if in.Nom != "" {
		fs = append(fs, literalField(PropNomStation, in.Nom))
	}
	if in.Latitude != nil {
		fs = append(fs, floatField(PropLatitude, *in.Latitude))
	}
	if in.Longitude != nil {
		fs = append(fs, floatField(PropLongitude, *in.Longitude))
	}
	if in.Capacite != nil {
		fs = append(fs, intField(PropCapacite, *in.Capacite))
	}
	if in.ImageURL != "" {
		fs = append(fs, literalField(PropImageURL, in.ImageURL))
	}
	return fs
}

// CreateStation mints a new station of a recognized leaf type.
func (s *Service) CreateStation(in StationInput) (string, error) {
	class, ok := StationTypes[in.Type]
	if !ok {
		return "", fmt.Errorf("unknown station type %q", in.Type)
	}
	return s.createEntity(class, in.Nom, in.fields()), nil
}

// UpdateStation replaces the provided fields on an existing station.
func (s *Service) UpdateStation(id string, in StationInput) error {
	return s.updateEntity(id, in.fields())
}

// DeleteStation removes a station and every reference to it.
func (s *Service) DeleteStation(id string) error {
	return s.deleteEntity(id)
}

// EventInput carries the writable fields of a traffic event.
type EventInput struct {
	Type        string `json:"type"`
	Gravite     *int   `json:"gravite,omitempty"`
	Date        string `json:"date,omitempty"` // ISO calendar date
	Description string `json:"description,omitempty"`
	Zone        string `json:"zone,omitempty"`
}

func (in EventInput) fields() []field {
	var fs []field
	if in.Gravite != nil {
		fs = append(fs, intField(PropGravite, *in.Gravite))
	}
	if in.Date != "" {
		fs = append(fs, field{pred: PropDateEvenement, term: rdf.TypedLiteral(in.Date, rdf.XSDDate)})
	}
	if in.Description != "" {
		fs = append(fs, literalField(PropDescription, in.Description))
	}
	if in.Zone != "" {
		fs = append(fs, iriField(PropImpacte, NS+in.Zone))
	}
	return fs
}

// CreateEvent mints a new traffic event of a recognized leaf type.
func (s *Service) CreateEvent(in EventInput) (string, error) {
	class, ok := EventTypes[in.Type]
	if !ok {
		return "", fmt.Errorf("unknown event type %q", in.Type)
	}
	return s.createEntity(class, in.Description, in.fields()), nil
}

// UpdateEvent replaces the provided fields on an existing event.
func (s *Service) UpdateEvent(id string, in EventInput) error {
	return s.updateEntity(id, in.fields())
}

// DeleteEvent removes an event and every reference to it.
func (s *Service) DeleteEvent(id string) error {
	return s.deleteEntity(id)
}
