package report

import (
	"math"

	"github.com/sells-group/salesops-cli/internal/aggregate"
	"github.com/sells-group/salesops-cli/internal/model"
)

// CrossAnalysis holds branch × product tables.
type CrossAnalysis struct {
	TaaanDeals    map[string]map[string]float64 `json:"taaan_deals"`
	ApprovedDeals map[string]map[string]float64 `json:"approved_deals"`
	TotalRevenue  map[string]map[string]float64 `json:"total_revenue"`
}

// CrossTabulate spreads each worker's deals, approvals and revenue over the
// month's products in proportion to each product's share of all deals. Each
// cell is rounded half up on its own, so a branch row may not sum to the
// worker totals.
func CrossTabulate(month *aggregate.Month) CrossAnalysis {
	out := CrossAnalysis{
		TaaanDeals:    make(map[string]map[string]float64),
		ApprovedDeals: make(map[string]map[string]float64),
		TotalRevenue:  make(map[string]map[string]float64),
	}

	var totalDeals float64
	for _, p := range month.Products {
		totalDeals += float64(p.TotalDeals)
	}
	if totalDeals == 0 {
		return out
	}

	for _, name := range month.StaffOrder() {
		w := month.Staff[name]
		if w.TotalDeals == 0 {
			continue
		}
		branch := model.OrUnspecified(w.Branch)
		for product, p := range month.Products {
			ratio := float64(p.TotalDeals) / totalDeals
			add(out.TaaanDeals, branch, product, roundHalfUp(float64(w.TotalDeals)*ratio))
			add(out.ApprovedDeals, branch, product, roundHalfUp(float64(w.TotalApproved)*ratio))
			add(out.TotalRevenue, branch, product, roundHalfUp(w.TotalRevenue*ratio))
		}
	}
	return out
}

func add(table map[string]map[string]float64, row, col string, v float64) {
	if table[row] == nil {
		table[row] = make(map[string]float64)
	}
	table[row][col] += v
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
