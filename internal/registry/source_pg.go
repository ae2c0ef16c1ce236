package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PGSource reads candidates from the clinic database. It does a coarse
// SQL prefilter only; the matcher does the real ranking, so the query just
// needs to not lose plausible candidates.
type PGSource struct {
	DB *sql.DB
	// Limit caps the prefiltered rows per search. Zero means 5000.
	Limit int
}

// Name implements Source.
func (s *PGSource) Name() string { return "postgres" }

// Search returns the newest patients up to the limit. Numeric queries get a
// SQL prefilter on the identity number and phone columns; text queries do
// not, because LIKE cannot reproduce the matcher's diacritic folding or
// fuzzy tolerance and would silently lose candidates.
func (s *PGSource) Search(ctx context.Context, query string) ([]Candidate, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = 5000
	}

	const base = `
SELECT id, display_name, national_id, phone
FROM patients
WHERE deleted_at IS NULL`

	var rows *sql.Rows
	var err error
	trimmed := strings.TrimSpace(query)
	if isNumeric(trimmed) && len(trimmed) >= 3 {
		pattern := "%" + trimmed + "%"
		rows, err = s.DB.QueryContext(ctx, base+`
  AND (national_id LIKE $1 OR replace(phone, ' ', '') LIKE $1)
ORDER BY created_at DESC
LIMIT $2`, pattern, limit)
	} else {
		rows, err = s.DB.QueryContext(ctx, base+`
ORDER BY created_at DESC
LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var nationalID, phone sql.NullString
		if err := rows.Scan(&c.ID, &c.DisplayName, &nationalID, &phone); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		c.NationalID = nationalID.String
		c.Phone = phone.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patients: %w", err)
	}
	return out, nil
}

var _ Source = (*PGSource)(nil)
