package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lease-match/internal/model"
)

// scannable is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (*model.Listing, error) {
	var l model.Listing
	var class, status string
	var certs []byte
	if err := row.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Address, &l.City, &l.State, &l.Zip,
		&l.Latitude, &l.Longitude, &l.TotalSF, &l.AvailableSF, &class, &l.YearBuilt,
		&l.ADAAccessible, &l.ParkingSpaces, &l.BackupPower, &l.SecurityLevel, &certs,
		&l.AskingRatePerSF, &l.AvailableDate, &l.PriorGovernmentLeases, &l.ConvertedMatches,
		&status, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.BuildingClass = model.BuildingClass(class)
	l.Status = model.ListingStatus(status)
	if err := unmarshalList(certs, &l.Certifications); err != nil {
		return nil, eris.Wrapf(err, "listing %s certifications", l.ID)
	}
	return &l, nil
}

func listingArgs(l *model.Listing, certs []byte, now time.Time) []any {
	return []any{
		l.ID, l.OwnerID, l.Title, l.Address, l.City, l.State, l.Zip,
		l.Latitude, l.Longitude, l.TotalSF, l.AvailableSF, string(l.BuildingClass), l.YearBuilt,
		l.ADAAccessible, l.ParkingSpaces, l.BackupPower, l.SecurityLevel, certs,
		l.AskingRatePerSF, utcPtr(l.AvailableDate), l.PriorGovernmentLeases, l.ConvertedMatches,
		string(l.Status), now,
	}
}

func scanOpportunity(row scannable) (*model.Opportunity, error) {
	var o model.Opportunity
	var status string
	var states, classes, certs []byte
	if err := row.Scan(
		&o.ID, &o.SolicitationNumber, &o.Title, &o.Agency, &o.City, &o.State, &o.Region,
		&states, &o.Latitude, &o.Longitude, &o.DelineatedRadiusMiles, &o.MinSF, &o.MaxSF,
		&classes, &o.RequiresADA, &o.RequiresBackupPower, &o.MinSecurityLevel,
		&o.MinParkingSpaces, &certs, &o.MaxRatePerSF, &o.OccupancyDate,
		&o.ResponseDeadline, &status, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = model.OpportunityStatus(status)
	if err := unmarshalList(states, &o.AcceptableStates); err != nil {
		return nil, eris.Wrapf(err, "opportunity %s acceptable states", o.ID)
	}
	if err := unmarshalList(classes, &o.BuildingClasses); err != nil {
		return nil, eris.Wrapf(err, "opportunity %s building classes", o.ID)
	}
	if err := unmarshalList(certs, &o.RequiredCertifications); err != nil {
		return nil, eris.Wrapf(err, "opportunity %s certifications", o.ID)
	}
	return &o, nil
}

type opportunityLists struct {
	states, classes, certs []byte
}

func marshalOpportunityLists(o *model.Opportunity) (opportunityLists, error) {
	var out opportunityLists
	var err error
	if out.states, err = json.Marshal(nonNil(o.AcceptableStates)); err != nil {
		return out, err
	}
	if out.classes, err = json.Marshal(nonNil(o.BuildingClasses)); err != nil {
		return out, err
	}
	out.certs, err = json.Marshal(nonNil(o.RequiredCertifications))
	return out, err
}

func opportunityArgs(o *model.Opportunity, lists opportunityLists, now time.Time) []any {
	return []any{
		o.ID, o.SolicitationNumber, o.Title, o.Agency, o.City, o.State, o.Region,
		lists.states, o.Latitude, o.Longitude, o.DelineatedRadiusMiles, o.MinSF, o.MaxSF,
		lists.classes, o.RequiresADA, o.RequiresBackupPower, o.MinSecurityLevel,
		o.MinParkingSpaces, lists.certs, o.MaxRatePerSF, utcPtr(o.OccupancyDate),
		utcPtr(o.ResponseDeadline), string(o.Status), now,
	}
}

func scanMatch(row scannable) (*model.Match, error) {
	var m model.Match
	var grade string
	var breakdown []byte
	if err := row.Scan(
		&m.ID, &m.ListingID, &m.OpportunityID, &m.OverallScore, &grade,
		&m.Qualified, &m.Competitive, &breakdown, &m.RunID, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Grade = model.Grade(grade)
	if err := json.Unmarshal(breakdown, &m.Breakdown); err != nil {
		return nil, eris.Wrapf(err, "match %s breakdown", m.ID)
	}
	return &m, nil
}

func scanSummary(row scannable) (model.MatchSummary, error) {
	m := model.Match{}
	var grade string
	var breakdown []byte
	if err := row.Scan(
		&m.ListingID, &m.OpportunityID, &m.OverallScore, &grade,
		&m.Qualified, &m.Competitive, &breakdown,
	); err != nil {
		return model.MatchSummary{}, err
	}
	m.Grade = model.Grade(grade)
	if err := json.Unmarshal(breakdown, &m.Breakdown); err != nil {
		return model.MatchSummary{}, eris.Wrap(err, "match summary breakdown")
	}
	return m.Summary(), nil
}

func scanRun(row scannable) (*model.BatchStats, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		return nil, err
	}
	var st model.BatchStats
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrap(err, "run stats")
	}
	return &st, nil
}

func unmarshalList[T any](data []byte, dst *[]T) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	if len(*dst) == 0 {
		*dst = nil
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// utcPtr normalizes optional timestamps so text-stored times compare in order.
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
