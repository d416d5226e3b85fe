package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against a live database during stress.
// Each query selects VIOLATING rows, so an empty result set means the
// invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_ltv_consistent",
			SQL: `SELECT id, ltv, loan_amount, property_value FROM cases
                  WHERE property_value > 0
                    AND abs(ltv - round((loan_amount / property_value * 100)::numeric, 1)) > 0.05`,
		},
		{
			Name: "O2_stage_known",
			SQL: `SELECT id, stage FROM cases
                  WHERE stage NOT IN ('intake_received','data_completion','market_analysis',
                                      'human_review','pending_delivery','awaiting_decision',
                                      'decision_chase','client_proceeding','broker_validation',
                                      'application_submitted','offer_received','completed',
                                      'withdrawn','unsuitable')`,
		},
		{
			Name: "O3_decision_stage_consistent",
			SQL: `SELECT id, stage, client_decision FROM cases
                  WHERE (stage = 'client_proceeding' AND client_decision <> 'proceeding')
                     OR (client_decision = 'proceeding' AND stage NOT IN
                         ('client_proceeding','broker_validation','application_submitted',
                          'offer_received','completed','withdrawn'))`,
		},
		{
			Name: "O4_chase_requires_delivery",
			SQL: `SELECT id, chase_count FROM cases
                  WHERE chase_count > 0 AND delivered_at IS NULL`,
		},
		{
			Name: "O5_chase_count_stamped",
			SQL: `SELECT id, chase_count FROM cases
                  WHERE chase_count > 0 AND last_chase_at IS NULL`,
		},
		{
			Name: "O6_chase_attempts_monotonic",
			SQL: `WITH seqs AS (
                      SELECT case_id, attempt,
                             LAG(attempt) OVER (PARTITION BY case_id ORDER BY id) AS prev
                      FROM chase_log)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND attempt <> prev + 1`,
		},
		{
			Name: "O7_chase_log_covers_count",
			SQL: `SELECT c.id, c.chase_count, COUNT(l.id) AS logged
                  FROM cases c LEFT JOIN chase_log l ON l.case_id = c.id
                  GROUP BY c.id, c.chase_count
                  HAVING c.chase_count > COUNT(l.id)`,
		},
		{
			Name: "O8_no_schedule_before_review",
			SQL: `SELECT id, stage, scheduled_send_at FROM cases
                  WHERE scheduled_send_at IS NOT NULL
                    AND stage IN ('intake_received','data_completion','market_analysis','human_review')`,
		},
		{
			Name: "O9_audit_has_creation",
			SQL: `SELECT c.id FROM cases c
                  WHERE NOT EXISTS (SELECT 1 FROM audit_log a
                                    WHERE a.case_id = c.id AND a.type = 'CASE_CREATED')`,
		},
		{
			Name: "O10_delivered_past_pending",
			SQL: `SELECT id, stage FROM cases
                  WHERE stage IN ('awaiting_decision','decision_chase','client_proceeding',
                                  'broker_validation','application_submitted','offer_received')
                    AND delivered_at IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
