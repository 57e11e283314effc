package resolver

import (
	"context"
	"time"

	"github.com/tenkpostcards/leadscout/internal/junkfilter"
)

// CompareQuery is one row of input to the comparison harness.
type CompareQuery struct {
	Name  string
	City  string
	State string
	Zip   string
}

// CompareRow aggregates one provider's performance over a query set.
type CompareRow struct {
	Provider   string
	Queries    int
	Found      int
	Errors     int
	AvgLatency time.Duration
}

// Compare runs every query against every provider independently and reports
// how often each one produced a filter-surviving website. Useful for deciding
// provider preference order before committing quota to it.
func (r *Resolver) Compare(ctx context.Context, queries []CompareQuery) []CompareRow {
	rows := make([]CompareRow, 0, len(r.providers))
	for _, p := range r.providers {
		row := CompareRow{Provider: p.Name(), Queries: len(queries)}
		var total time.Duration
		for _, q := range queries {
			query := buildQuery(q.Name, Location{City: q.City, State: q.State, Zip: q.Zip})
			biz := junkfilter.BizContext{Name: q.Name, City: q.City, State: q.State, Zip: q.Zip}

			start := time.Now()
			results, err := p.Search(ctx, query, r.limit)
			total += time.Since(start)
			if err != nil {
				row.Errors++
				continue
			}
			for _, res := range results {
				if v := r.filter.Evaluate(res, biz); v.Keep {
					row.Found++
					break
				}
			}
		}
		if len(queries) > 0 {
			row.AvgLatency = total / time.Duration(len(queries))
		}
		rows = append(rows, row)
	}
	return rows
}
