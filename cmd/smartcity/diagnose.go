package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smart-mobility/smartcity-go/pkg/answer"
	"github.com/smart-mobility/smartcity-go/pkg/config"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
	"github.com/smart-mobility/smartcity-go/pkg/smartcity"
)

// Diagnostic queries probing the datatype and subclass pitfalls the
// rewrite pipeline exists for.
var diagnosticQueries = []struct {
	title string
	text  string
}{
	{
		"Accidents with date datatype and severity",
		`PREFIX ont: <http://www.co-ode.org/ontologies/ont.owl#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>

SELECT ?accident ?date ?datatype ?gravite
WHERE {
  ?accident rdf:type ont:Accident .
  OPTIONAL { ?accident ont:aDateEvenement ?date . BIND(DATATYPE(?date) AS ?datatype) }
  OPTIONAL { ?accident ont:aGravite ?gravite }
}
ORDER BY ?date`,
	},
	{
		"Robust string-date comparison",
		`PREFIX ont: <http://www.co-ode.org/ontologies/ont.owl#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>

SELECT ?accident ?date ?gravite
WHERE {
  ?accident rdf:type ont:Accident .
  ?accident ont:aDateEvenement ?date .
  ?accident ont:aGravite ?gravite .
  FILTER ( STR(?date) >= "2025-10-01" && ?gravite >= 3 )
}
ORDER BY ?date`,
	},
	{
		"Subclass-aware type path",
		`PREFIX ont: <http://www.co-ode.org/ontologies/ont.owl#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>

SELECT ?accident ?date ?gravite
WHERE {
  ?accident rdf:type/rdfs:subClassOf* ont:Accident .
  OPTIONAL { ?accident ont:aDateEvenement ?date }
  OPTIONAL { ?accident ont:aGravite ?gravite }
}
ORDER BY ?date`,
	},
}

func newDiagnoseCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Run diagnostic queries against the ontology file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(*configPath)
		},
	}
}

func runDiagnose(configPath string) error {
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
	rewriter := rewrite.New(store, logger)
	normalizer := answer.NewNormalizer(store, rdf.RDFSLabel, smartcity.PropNom, smartcity.PropNomStation)
	controller := answer.NewController(store, rewriter, normalizer, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for _, dq := range diagnosticQueries {
		fmt.Printf("\n----- %s\n", dq.title)
		outcome := controller.Run(rewriter.Rewrite(rewrite.CandidateQuery{
			Text:       dq.text,
			Provenance: rewrite.ProvenanceUser,
		}))
		if outcome.Err != nil {
			fmt.Printf("error: %v\n", outcome.Err)
			continue
		}
		fmt.Printf("status: %s, rows: %d\n", outcome.Status, outcome.Count())
		if err := enc.Encode(outcome.Results); err != nil {
			return err
		}
	}
	return nil
}
