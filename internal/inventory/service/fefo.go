package service

import (
	"sort"
	"time"

	"github.com/nenempneuscom-star/syscli-sub000/internal/inventory/repository"
)

// BatchInfo is a derived view, not a stored row: a batch exists only as the
// result of replaying a product's ledger. Quantity is what remains after
// FEFO depletion.
type BatchInfo struct {
	BatchNumber    string     `json:"batch_number"`
	Quantity       int        `json:"quantity"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	UnitCost       *float64   `json:"unit_cost,omitempty"`
}

// AllocateBatches replays a product's full ledger and returns the batches
// that still hold stock, First-Expired-First-Out.
//
// Movements must be in ledger order (created_at, id ascending). The
// algorithm:
//
//  1. IN movements carrying a batch number accumulate into per-batch totals.
//     When the same batch number reappears with a different expiration date
//     or unit cost, the first observed values win; later INs only add
//     quantity.
//  2. OUT and EXPIRED movements are summed into a single depletion total.
//     Depletion is not attributed to a batch at write time, so it is applied
//     FEFO-blind at read time.
//  3. Batches are sorted by expiration ascending; batches without an
//     expiration date sort last, since they cannot expire there is no
//     urgency to consume them.
//  4. The depletion total is walked across the sorted batches, draining
//     each in turn.
//
// Only batches with remaining quantity > 0 are returned.
func AllocateBatches(movements []*repository.StockMovement) []*BatchInfo {
	byNumber := make(map[string]*BatchInfo)
	order := make([]string, 0)
	totalOut := 0

	for _, m := range movements {
		switch m.Type {
		case repository.MovementIn:
			if m.BatchNumber == nil || *m.BatchNumber == "" {
				continue
			}
			number := *m.BatchNumber
			if existing, ok := byNumber[number]; ok {
				existing.Quantity += m.Quantity
				continue
			}
			byNumber[number] = &BatchInfo{
				BatchNumber:    number,
				Quantity:       m.Quantity,
				ExpirationDate: m.ExpirationDate,
				UnitCost:       m.UnitCost,
			}
			order = append(order, number)

		case repository.MovementOut, repository.MovementExpired:
			totalOut += m.Quantity
		}
	}

	batches := make([]*BatchInfo, 0, len(byNumber))
	for _, number := range order {
		batches = append(batches, byNumber[number])
	}

	sortBatchesFEFO(batches)

	for _, b := range batches {
		if totalOut == 0 {
			break
		}
		deduct := b.Quantity
		if totalOut < deduct {
			deduct = totalOut
		}
		b.Quantity -= deduct
		totalOut -= deduct
	}

	remaining := batches[:0]
	for _, b := range batches {
		if b.Quantity > 0 {
			remaining = append(remaining, b)
		}
	}

	return remaining
}

// sortBatchesFEFO orders batches earliest expiry first; batches with no
// expiration date go last. Ties keep first-observed order (stable sort).
func sortBatchesFEFO(batches []*BatchInfo) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i].ExpirationDate, batches[j].ExpirationDate
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
}

// NearestExpiry returns the earliest expiration date among batches that still
// hold stock, or nil when none expire.
func NearestExpiry(batches []*BatchInfo) *time.Time {
	var nearest *time.Time
	for _, b := range batches {
		if b.ExpirationDate == nil {
			continue
		}
		if nearest == nil || b.ExpirationDate.Before(*nearest) {
			nearest = b.ExpirationDate
		}
	}
	return nearest
}

// FilterExpiringWithin returns the batches expiring in [today, today+days],
// still holding stock. Expiration dates are date-granular, so the comparison
// runs against the start of the current day.
func FilterExpiringWithin(batches []*BatchInfo, now time.Time, days int) []*BatchInfo {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cutoff := today.AddDate(0, 0, days)

	expiring := make([]*BatchInfo, 0)
	for _, b := range batches {
		if b.ExpirationDate == nil {
			continue
		}
		if b.ExpirationDate.Before(today) || b.ExpirationDate.After(cutoff) {
			continue
		}
		expiring = append(expiring, b)
	}
	return expiring
}
