// Package smartcity implements the mobility domain over the RDF store:
// vocabulary, entity listing and search, CRUD mutation and statistics.
package smartcity

import "strings"

// Ontology namespaces.
const (
	NS    = "http://example.org/smartcity#"
	OntNS = "http://www.co-ode.org/ontologies/ont.owl#"
)

// Classes. Instances are always typed by a leaf subclass, never the
// abstract parent directly.
const (
	ClassTransport        = NS + "Transport"
	ClassBus              = NS + "Bus"
	ClassMetro            = NS + "Métro"
	ClassVelo             = NS + "Vélo"
	ClassVoiturePartagee  = NS + "VoiturePartagée"
	ClassTrottinette      = NS + "Trottinette"
	ClassUtilisateur      = NS + "Utilisateur"
	ClassCitoyen          = NS + "Citoyen"
	ClassTouriste         = NS + "Touriste"
	ClassStation          = NS + "Station"
	ClassStationMetro     = NS + "StationMétro"
	ClassStationBus       = NS + "StationBus"
	ClassParking          = NS + "Parking"
	ClassTrajet           = NS + "Trajet"
	ClassZoneUrbaine      = NS + "ZoneUrbaine"
	ClassCentreVille      = NS + "CentreVille"
	ClassBanlieue         = NS + "Banlieue"
	ClassZoneIndustrielle = NS + "ZoneIndustrielle"
	ClassEvenement        = NS + "EvenementDeCirculation"
	ClassEmbouteillage    = NS + "Embouteillage"
	ClassAccident         = NS + "Accident"
	ClassCapteur          = NS + "Capteur"
	ClassTicket           = NS + "Ticket"
	ClassEnergie          = NS + "Energie"
)

// Data properties.
const (
	PropNom             = OntNS + "Nom"
	PropAge             = OntNS + "Age"
	PropEmail           = OntNS + "Email"
	PropCapacite        = OntNS + "Capacite"
	PropImmatriculation = OntNS + "Immatriculation"
	PropVitesseMax      = OntNS + "VitesseMax"
	PropEstElectrique   = OntNS + "estElectrique"
	PropNomStation      = OntNS + "aNomStation"
	PropLatitude        = OntNS + "aLatitude"
	PropLongitude       = OntNS + "aLongitude"
	PropGravite         = OntNS + "aGravite"
	PropDateEvenement   = OntNS + "aDateEvenement"
	PropDescription     = OntNS + "aDescription"
	PropDuree           = OntNS + "aDuree"
	PropDistance        = OntNS + "aDistance"
	PropPrix            = OntNS + "aPrix"
	PropPrixTicket      = OntNS + "aPrixTicket"
	PropValide          = OntNS + "aValide"
	PropImageURL        = OntNS + "aImageURL"
)

// Object properties.
const (
	PropUtiliseTransport = NS + "utiliseTransport"
	PropCirculeDans      = NS + "circuleDans"
	PropPartDe           = NS + "partDe"
	PropArriveA          = NS + "arriveA"
	PropImpacte          = NS + "impacte"
	PropMesure           = NS + "mesure"
	PropATicket          = NS + "aTicket"
	PropAlimentePar      = NS + "alimentePar"
	PropConnecteA        = NS + "connecteA"
	PropOrganiseDans     = NS + "organiseDans"
)

// ClassHierarchy maps each abstract parent class to its leaf subclasses.
var ClassHierarchy = map[string][]string{
	ClassTransport:   {ClassBus, ClassMetro, ClassVelo, ClassVoiturePartagee, ClassTrottinette},
	ClassUtilisateur: {ClassCitoyen, ClassTouriste},
	ClassStation:     {ClassStationMetro, ClassStationBus, ClassParking},
	ClassZoneUrbaine: {ClassCentreVille, ClassBanlieue, ClassZoneIndustrielle},
	ClassEvenement:   {ClassEmbouteillage, ClassAccident},
}

// TransportTypes are the accepted leaf types for transport creation,
// keyed by their request-facing names.
var TransportTypes = map[string]string{
	"Bus":             ClassBus,
	"Métro":           ClassMetro,
	"Metro":           ClassMetro,
	"Vélo":            ClassVelo,
	"Velo":            ClassVelo,
	"VoiturePartagée": ClassVoiturePartagee,
	"VoiturePartagee": ClassVoiturePartagee,
	"Trottinette":     ClassTrottinette,
}

// UserTypes are the accepted leaf types for user creation.
var UserTypes = map[string]string{
	"Citoyen":  ClassCitoyen,
	"Touriste": ClassTouriste,
}

// StationTypes are the accepted leaf types for station creation.
var StationTypes = map[string]string{
	"StationMétro": ClassStationMetro,
	"StationMetro": ClassStationMetro,
	"StationBus":   ClassStationBus,
	"Parking":      ClassParking,
}

// EventTypes are the accepted leaf types for traffic event creation.
var EventTypes = map[string]string{
	"Embouteillage": ClassEmbouteillage,
	"Accident":      ClassAccident,
}

// SchemaDescription renders the ontology schema embedded in the prompt
// sent to the generative model.
func SchemaDescription() string {
	var sb strings.Builder
	sb.WriteString("Namespaces:\n")
	sb.WriteString("  PREFIX smartcity: <" + NS + ">\n")
	sb.WriteString("  PREFIX ont: <" + OntNS + ">\n\n")

	sb.WriteString("Classes (instances are typed by the leaf subclasses):\n")
	sb.WriteString("  smartcity:Transport > Bus, Métro, Vélo, VoiturePartagée, Trottinette\n")
	sb.WriteString("  smartcity:Utilisateur > Citoyen, Touriste\n")
	sb.WriteString("  smartcity:Station > StationMétro, StationBus, Parking\n")
	sb.WriteString("  smartcity:ZoneUrbaine > CentreVille, Banlieue, ZoneIndustrielle\n")
	sb.WriteString("  smartcity:EvenementDeCirculation > Embouteillage, Accident\n")
	sb.WriteString("  smartcity:Trajet, smartcity:Capteur, smartcity:Ticket, smartcity:Energie\n\n")

	sb.WriteString("Data properties (namespace ont:):\n")
	sb.WriteString("  ont:Nom, ont:Age, ont:Email, ont:Capacite, ont:Immatriculation,\n")
	sb.WriteString("  ont:VitesseMax, ont:estElectrique, ont:aNomStation, ont:aLatitude,\n")
	sb.WriteString("  ont:aLongitude, ont:aGravite, ont:aDateEvenement, ont:aDescription,\n")
	sb.WriteString("  ont:aDuree, ont:aDistance, ont:aPrix, ont:aPrixTicket, ont:aValide\n\n")

	sb.WriteString("Object properties (namespace smartcity:):\n")
	sb.WriteString("  smartcity:utiliseTransport, smartcity:circuleDans, smartcity:partDe,\n")
	sb.WriteString("  smartcity:arriveA, smartcity:impacte, smartcity:mesure,\n")
	sb.WriteString("  smartcity:aTicket, smartcity:alimentePar, smartcity:connecteA,\n")
	sb.WriteString("  smartcity:organiseDans\n")
	return sb.String()
}
