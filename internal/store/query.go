package store

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
)

var matchColumns = []string{
	"id", "listing_id", "opportunity_id", "overall_score", "grade",
	"qualified", "competitive", "score_breakdown", "run_id",
	"created_at", "updated_at",
}

var summaryColumns = []string{
	"listing_id", "opportunity_id", "overall_score", "grade",
	"qualified", "competitive", "score_breakdown",
}

// matchListQuery builds the filtered, paged match query for a driver's
// placeholder format.
func matchListQuery(table string, f MatchFilter, ph sq.PlaceholderFormat) (string, []any, error) {
	q := sq.StatementBuilder.PlaceholderFormat(ph).
		Select(matchColumns...).
		From(table)

	if f.ListingID != "" {
		q = q.Where(sq.Eq{"listing_id": f.ListingID})
	}
	if f.OpportunityID != "" {
		q = q.Where(sq.Eq{"opportunity_id": f.OpportunityID})
	}
	if f.MinScore > 0 {
		q = q.Where(sq.GtOrEq{"overall_score": f.MinScore})
	}
	if f.Grade != "" {
		q = q.Where(sq.Eq{"grade": string(f.Grade)})
	}
	if f.Qualified != nil {
		q = q.Where(sq.Eq{"qualified": *f.Qualified})
	}
	if f.Competitive != nil {
		q = q.Where(sq.Eq{"competitive": *f.Competitive})
	}

	q = q.OrderBy("overall_score DESC", "listing_id", "opportunity_id").
		Limit(uint64(f.pageLimit()))
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return "", nil, eris.Wrap(err, "store: build match query")
	}
	return sql, args, nil
}

// validateFilter rejects filters no driver can serve.
func validateFilter(f MatchFilter) error {
	if f.MinScore < 0 || f.MinScore > 100 {
		return eris.Errorf("store: min score %d outside [0, 100]", f.MinScore)
	}
	if f.Offset < 0 {
		return eris.Errorf("store: negative offset %d", f.Offset)
	}
	return nil
}
