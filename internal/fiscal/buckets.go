package fiscal

import "time"

// Point is one dated amount fed into a sales graph.
type Point struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// BucketMonthly sums points into the twelve fiscal months of startYear.
// Points dated outside that year are dropped.
func BucketMonthly(startYear int, points []Point) [12]float64 {
	var out [12]float64
	for _, p := range points {
		if !InYear(p.Date, startYear) {
			continue
		}
		out[MonthIndex(p.Date, startYear)] += p.Amount
	}
	return out
}

// BucketQuarterly folds monthly buckets into fiscal quarters.
func BucketQuarterly(monthly [12]float64) [4]float64 {
	var out [4]float64
	for i, v := range monthly {
		out[QuarterIndex(i)] += v
	}
	return out
}
