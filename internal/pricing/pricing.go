package pricing

import (
	"fmt"
	"math"
)

// GuestsPerCabin is the fixed double-occupancy capacity of one cabin.
const GuestsPerCabin = 2

// Reason tags a failed calculation so callers can branch on the cause
// instead of matching the human-readable message.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonGroupTooSmall   Reason = "GROUP_TOO_SMALL"
	ReasonNotEnoughCabins Reason = "NOT_ENOUGH_CABINS"
)

type Request struct {
	PriceCabinCents int64
	Guests          int
	SpotsLeft       int
	CabinsTotal     int
}

// Result is always returned, never an error. TotalCents and PerPersonCents
// are meaningful only when Valid is true.
type Result struct {
	Valid           bool
	CabinsRequired  int
	CabinsAvailable int
	TotalCents      int64
	PerPersonCents  int64
	Reason          Reason
	Message         string
}

// Calculate decides whether a group fits into whole cabins on a trip and, if
// so, prices the booking. Each cabin sleeps exactly two guests, so an odd
// group pays for the full extra cabin. Availability is bounded both by the
// remaining guest capacity and by the physical cabin count. Pure: no I/O, no
// mutation of the request.
func Calculate(req Request) Result {
	required := (req.Guests + GuestsPerCabin - 1) / GuestsPerCabin
	available := req.SpotsLeft / GuestsPerCabin
	if available > req.CabinsTotal {
		available = req.CabinsTotal
	}

	res := Result{
		CabinsRequired:  required,
		CabinsAvailable: available,
	}

	if req.Guests < 1 {
		res.Reason = ReasonGroupTooSmall
		res.Message = "group size must be at least 1"
		return res
	}
	if required > available {
		res.Reason = ReasonNotEnoughCabins
		res.Message = fmt.Sprintf("only %d cabin(s) available for %d guests", available, req.Guests)
		return res
	}

	res.Valid = true
	res.TotalCents = int64(required) * req.PriceCabinCents
	// Blended per-person average across the whole party, including any
	// half-empty cabin, rounded to the nearest cent.
	res.PerPersonCents = roundDiv(res.TotalCents, int64(req.Guests))
	return res
}

// ApplyDiscount subtracts a percentage-of-base discount from a cent total.
// Discounts never change the cabin count, so this runs strictly after
// Calculate.
func ApplyDiscount(totalCents int64, percent float64) int64 {
	if percent <= 0 {
		return totalCents
	}
	discount := int64(math.Round(float64(totalCents) * percent / 100))
	return totalCents - discount
}

// VerifyQuote reports whether a client-submitted total agrees with the
// server-recomputed one within a one-cent tolerance. Anything beyond that is
// a stale quote or tampering and must be rejected as a conflict.
func VerifyQuote(serverCents, clientCents int64) bool {
	diff := serverCents - clientCents
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func roundDiv(a, b int64) int64 {
	return (a + b/2) / b
}
