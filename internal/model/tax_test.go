package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestGeoZoneMatchesWildcards(t *testing.T) {
	countryWide := GeoZone{Country: "US", Active: true}
	stateWide := GeoZone{Country: "US", State: ptr("CA"), Active: true}
	cityLevel := GeoZone{Country: "US", State: ptr("CA"), City: ptr("Los Angeles"), Active: true}

	la := Location{Country: "US", State: "CA", City: "Los Angeles"}
	sf := Location{Country: "US", State: "CA", City: "San Francisco"}
	nyc := Location{Country: "US", State: "NY", City: "New York"}
	berlin := Location{Country: "DE", State: "BE", City: "Berlin"}

	require.True(t, countryWide.Matches(la))
	require.True(t, countryWide.Matches(nyc))
	require.False(t, countryWide.Matches(berlin))

	require.True(t, stateWide.Matches(la))
	require.True(t, stateWide.Matches(sf))
	require.False(t, stateWide.Matches(nyc))

	require.True(t, cityLevel.Matches(la))
	require.False(t, cityLevel.Matches(sf))
}

func TestGeoZoneMatchesRequiresActive(t *testing.T) {
	zone := GeoZone{Country: "US"}
	require.False(t, zone.Matches(Location{Country: "US"}))

	zone.Active = true
	require.True(t, zone.Matches(Location{Country: "US"}))
}

func TestGeoZoneConcreteStateRejectsEmpty(t *testing.T) {
	// A state-scoped zone must not match a location with no state at all.
	zone := GeoZone{Country: "US", State: ptr("CA"), Active: true}
	require.False(t, zone.Matches(Location{Country: "US"}))
}

func TestContributionPercentageRoundsHalfUp(t *testing.T) {
	rate := TaxRate{Rate: decimal.RequireFromString("7.5"), Type: TaxRatePercentage}

	// 33.33 * 7.5% = 2.49975 -> 2.50
	got := rate.Contribution(decimal.RequireFromString("33.33"))
	require.Equal(t, "2.50", got.StringFixed(2))

	// 10.01 * 2.5% = 0.25025 -> 0.25
	rate.Rate = decimal.RequireFromString("2.5")
	got = rate.Contribution(decimal.RequireFromString("10.01"))
	require.Equal(t, "0.25", got.StringFixed(2))

	// exact half rounds up: 10 * 0.25% = 0.025 -> 0.03
	rate.Rate = decimal.RequireFromString("0.25")
	got = rate.Contribution(decimal.NewFromInt(10))
	require.Equal(t, "0.03", got.StringFixed(2))
}

func TestContributionFixedIgnoresBase(t *testing.T) {
	rate := TaxRate{Rate: decimal.RequireFromString("1.505"), Type: TaxRateFixed}

	got := rate.Contribution(decimal.NewFromInt(1000))
	require.Equal(t, "1.505", got.String())
}

func TestOrderItemSubtotal(t *testing.T) {
	item := OrderItem{Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	require.Equal(t, "59.97", item.Subtotal().StringFixed(2))
}
