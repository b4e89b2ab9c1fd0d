package models

import "time"

type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusConfirmed DonationStatus = "confirmed"
	DonationStatusAllocated DonationStatus = "allocated"
	DonationStatusDelivered DonationStatus = "delivered"
)

// DonationStatusRank orders the donation lifecycle. -1 for unknown statuses.
func DonationStatusRank(s DonationStatus) int {
	switch s {
	case DonationStatusPending:
		return 0
	case DonationStatusConfirmed:
		return 1
	case DonationStatusAllocated:
		return 2
	case DonationStatusDelivered:
		return 3
	default:
		return -1
	}
}

type Donation struct {
	ID              string         `json:"id"`
	DonorID         string         `json:"donor_id,omitempty"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	CreatedAt       time.Time      `json:"created_at"`
	Status          DonationStatus `json:"status"`
	TransactionHash string         `json:"transaction_hash,omitempty"` // assigned at intake, never changes
	AllocatedTo     string         `json:"allocated_to,omitempty"`
}
