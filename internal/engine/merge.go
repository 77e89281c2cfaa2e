package engine

import (
	"strings"

	"github.com/reicrm/internal/store"
)

// MergePropertyFields computes the additive update that folds incoming data
// into an existing property. A parcel id only fills an empty one; financial
// fields are taken whenever the incoming value is non-zero. Pure.
func MergePropertyFields(existing store.Property, incoming PropertyData) (store.PropertyPatch, bool) {
	var patch store.PropertyPatch

	if isBlank(existing.ParcelID) && !isBlank(incoming.ParcelID) {
		patch.ParcelID = ptr(strings.TrimSpace(*incoming.ParcelID))
	}
	if incoming.NetOperatingIncome != 0 && incoming.NetOperatingIncome != existing.NetOperatingIncome {
		patch.NetOperatingIncome = ptr(incoming.NetOperatingIncome)
	}
	if incoming.Price != 0 && incoming.Price != existing.Price {
		patch.Price = ptr(incoming.Price)
	}
	if incoming.ReturnOnInvestment != 0 && incoming.ReturnOnInvestment != existing.ReturnOnInvestment {
		patch.ReturnOnInvestment = ptr(incoming.ReturnOnInvestment)
	}
	if incoming.NumberOfUnits != 0 && incoming.NumberOfUnits != existing.NumberOfUnits {
		patch.NumberOfUnits = ptr(incoming.NumberOfUnits)
	}
	if incoming.SquareFeet != 0 && incoming.SquareFeet != existing.SquareFeet {
		patch.SquareFeet = ptr(incoming.SquareFeet)
	}

	return patch, !patch.Empty()
}

// MergeOwnerFields computes the additive update that folds incoming owner
// data into an existing owner. Populated fields are never overwritten. Pure.
func MergeOwnerFields(existing store.Owner, incoming OwnerData) (store.OwnerPatch, bool) {
	var patch store.OwnerPatch

	patch.LLCContact = fillBlank(existing.LLCContact, incoming.LLCContact)
	patch.StreetAddress = fillBlank(existing.StreetAddress, incoming.StreetAddress)
	patch.City = fillBlank(existing.City, incoming.City)
	patch.State = fillBlank(existing.State, incoming.State)
	patch.ZipCode = fillBlank(existing.ZipCode, incoming.ZipCode)

	return patch, !patch.Empty()
}

func fillBlank(existing, incoming *string) *string {
	if !isBlank(existing) || isBlank(incoming) {
		return nil
	}
	return ptr(strings.TrimSpace(*incoming))
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func ptr[T any](v T) *T {
	return &v
}
