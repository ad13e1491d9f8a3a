package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/config"
	"github.com/smart-mobility/smartcity-go/pkg/smartcity"
)

func newPopulateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "Insert sample entities into the ontology file",
		Long: `Populate writes a set of sample stations, transports, users and
traffic events into the ontology file. Entities whose name already
exists are skipped, so the command is idempotent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPopulate(*configPath)
		},
	}
}

func intOf(n int) *int           { return &n }
func boolOf(b bool) *bool        { return &b }
func floatOf(f float64) *float64 { return &f }

var sampleStations = []smartcity.StationInput{
	{Type: "StationBus", Nom: "Station_Centre", Latitude: floatOf(36.849508), Longitude: floatOf(10.200554)},
	{Type: "StationMétro", Nom: "Station_Wael", Latitude: floatOf(36.852117), Longitude: floatOf(10.242268)},
	{Type: "Parking", Nom: "Station_Manzah1", Latitude: floatOf(36.843961), Longitude: floatOf(10.190413)},
}

var sampleTransports = []smartcity.TransportInput{
	{Type: "Bus", Nom: "Bus_324", Capacite: intOf(32), Immatriculation: "BUS-324", VitesseMax: intOf(90), EstElectrique: boolOf(false)},
	{Type: "Métro", Nom: "Metro_A", Capacite: intOf(200), Immatriculation: "METRO-1", VitesseMax: intOf(80), EstElectrique: boolOf(true)},
	{Type: "Trottinette", Nom: "Trotti_01", Capacite: intOf(1), Immatriculation: "TROT-01", VitesseMax: intOf(25), EstElectrique: boolOf(true)},
}

var sampleUsers = []smartcity.UserInput{
	{Type: "Citoyen", Nom: "Ali", Age: intOf(25), Email: "ali@example.com"},
	{Type: "Citoyen", Nom: "Wael", Age: intOf(43), Email: "wael.marwani@esprit.tn"},
	{Type: "Touriste", Nom: "Kenza", Age: intOf(30), Email: "kenza@example.com"},
}

var sampleEvents = []smartcity.EventInput{
	{Type: "Accident", Gravite: intOf(3), Date: "2025-10-27", Description: "Accident test"},
}

func runPopulate(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := loadGraph(cfg, logger)
	if err != nil {
		return err
	}
	service := smartcity.NewService(store, cfg.Graph.OntologyPath, logger)

	existing := make(map[string]bool)
	for _, list := range []func() ([]smartcity.Record, error){
		service.ListStations, service.ListTransports, service.ListUsers,
	} {
		records, err := list()
		if err != nil {
			return err
		}
		for _, r := range records {
			existing[r["nom"]] = true
		}
	}

	created := 0
	for _, in := range sampleStations {
		if existing[in.Nom] {
			continue
		}
		if _, err := service.CreateStation(in); err != nil {
			return err
		}
		created++
	}
	for _, in := range sampleTransports {
		if existing[in.Nom] {
			continue
		}
		if _, err := service.CreateTransport(in); err != nil {
			return err
		}
		created++
	}
	for _, in := range sampleUsers {
		if existing[in.Nom] {
			continue
		}
		if _, err := service.CreateUser(in); err != nil {
			return err
		}
		created++
	}
	for _, in := range sampleEvents {
		if _, err := service.CreateEvent(in); err != nil {
			return err
		}
		created++
	}

	logger.Info("sample data populated",
		zap.Int("created", created),
		zap.Int("triples", store.Len()))
	fmt.Printf("Created %d entities (%d triples total)\n", created, store.Len())
	return nil
}
