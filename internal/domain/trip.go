package domain

import "time"

type Trip struct {
	ID              int64
	Destination     string
	StartDate       time.Time
	EndDate         time.Time
	CabinsTotal     int
	SpotsLeft       int
	PriceCabinCents int64
	DiscountPercent float64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
