package geospatial

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/model"
)

// StateSummary holds aggregated federal inventory statistics for a state.
type StateSummary struct {
	State       string  `json:"state"`
	Properties  int     `json:"properties"`
	LeasedCount int     `json:"leased_count"`
	OwnedCount  int     `json:"owned_count"`
	TotalRSF    float64 `json:"total_rsf"`
	VacantRSF   float64 `json:"vacant_rsf"`
	VacancyRate float64 `json:"vacancy_rate"`
}

const stateSummarySQL = `
	SELECT
		COALESCE(state, '') AS state,
		COUNT(*) AS properties,
		COUNT(*) FILTER (WHERE ownership = 'leased') AS leased_count,
		COUNT(*) FILTER (WHERE ownership = 'owned') AS owned_count,
		COALESCE(SUM(rentable_sf), 0) AS total_rsf,
		COALESCE(SUM(vacant_sf), 0) AS vacant_rsf
	FROM lease.federal_properties
	GROUP BY COALESCE(state, '')
	ORDER BY state
`

// scanStateSummaries reads rows shaped like stateSummarySQL.
func scanStateSummaries(rows pgx.Rows) ([]StateSummary, error) {
	defer rows.Close()

	var out []StateSummary
	for rows.Next() {
		var s StateSummary
		if err := rows.Scan(&s.State, &s.Properties, &s.LeasedCount, &s.OwnedCount, &s.TotalRSF, &s.VacantRSF); err != nil {
			return nil, eris.Wrap(err, "geo: scan state summary")
		}
		s.VacancyRate = vacancyRate(s.VacantRSF, s.TotalRSF)
		out = append(out, s)
	}
	return out, eris.Wrap(rows.Err(), "geo: iterate state summary")
}

// summarizeByState computes StateSummary rows in Go for inventories without SQL.
func summarizeByState(props []model.FederalProperty) []StateSummary {
	byState := make(map[string]*StateSummary)
	for _, p := range props {
		s, ok := byState[p.State]
		if !ok {
			s = &StateSummary{State: p.State}
			byState[p.State] = s
		}
		s.Properties++
		switch p.Ownership {
		case model.OwnershipLeased:
			s.LeasedCount++
		case model.OwnershipOwned:
			s.OwnedCount++
		}
		s.TotalRSF += p.RentableSF
		s.VacantRSF += p.VacantSF
	}

	out := make([]StateSummary, 0, len(byState))
	for _, s := range byState {
		s.VacancyRate = vacancyRate(s.VacantRSF, s.TotalRSF)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

func vacancyRate(vacant, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return vacant / total
}

// Summarize is a convenience wrapper used by the CLI and analytics.
func Summarize(ctx context.Context, inv Inventory) ([]StateSummary, error) {
	out, err := inv.StateSummary(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "geo: state summary")
	}
	return out, nil
}
