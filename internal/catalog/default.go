package catalog

func threshold(v float64) *float64 { return &v }

// Default returns the built-in plan-portfolio catalog. It is used when
// no catalog file is configured and by tests; a deployment normally
// ships its own YAML.
func Default() *Catalog {
	c, err := New([]Definition{
		{
			Name:        "ask_delayed_plans",
			Description: "list the plans currently running late",
			Tool:        "query_delayed_plans",
			CostScore:   0.2,
			Examples: []string{
				"piani in ritardo",
				"which plans are delayed?",
				"quali piani sono in ritardo?",
			},
		},
		{
			Name:          "ask_plan_status",
			Description:   "show the status of a specific plan",
			RequiredSlots: []string{"plan_id"},
			Tool:          "query_plan_status",
			CostScore:     0.2,
			Examples: []string{
				"stato del piano P-102",
				"what's the status of plan P-102?",
			},
		},
		{
			Name:          "ask_plans_by_unit",
			Description:   "list the plans owned by an organizational unit",
			RequiredSlots: []string{"org_unit"},
			Tool:          "query_plans_by_unit",
			CostScore:     0.3,
			Examples: []string{
				"piani dell'unità logistica",
				"show me the plans for the finance unit",
			},
		},
		{
			Name:              "ask_plan_risk",
			Description:       "compute the risk score of a plan",
			RequiredSlots:     []string{"plan_id"},
			Tool:              "score_plan_risk",
			CostScore:         0.8,
			TwoPhaseThreshold: threshold(0.7),
			Examples: []string{
				"rischio del piano P-102",
				"how risky is plan P-102?",
			},
		},
		{
			Name:              "ask_portfolio_report",
			Description:       "build a full portfolio report for a unit",
			RequiredSlots:     []string{"org_unit"},
			Tool:              "build_portfolio_report",
			CostScore:         0.5,
			TwoPhaseThreshold: threshold(0.6),
			Examples: []string{
				"report completo del portfolio",
				"full report for the operations unit",
			},
		},
		{
			Name:        "greet",
			Description: "say hello",
			Examples:    []string{"ciao", "hello", "buongiorno"},
		},
		{
			Name:        "help",
			Description: "explain what the assistant can do",
			Examples:    []string{"aiuto", "help", "cosa sai fare?"},
		},
	})
	if err != nil {
		// The built-in catalog is validated by tests; a failure here is
		// a programming error.
		panic(err)
	}
	return c
}
