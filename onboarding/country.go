package onboarding

import "strings"

type Country struct {
	Code string
	Name string
	Flag string
}

// Kept at or below 25 entries, the option limit of a Discord select menu.
var countries = []Country{
	{Code: "NL", Name: "Netherlands", Flag: "🇳🇱"},
	{Code: "BE", Name: "Belgium", Flag: "🇧🇪"},
	{Code: "DE", Name: "Germany", Flag: "🇩🇪"},
	{Code: "FR", Name: "France", Flag: "🇫🇷"},
	{Code: "LU", Name: "Luxembourg", Flag: "🇱🇺"},
	{Code: "AT", Name: "Austria", Flag: "🇦🇹"},
	{Code: "ES", Name: "Spain", Flag: "🇪🇸"},
	{Code: "IT", Name: "Italy", Flag: "🇮🇹"},
	{Code: "PT", Name: "Portugal", Flag: "🇵🇹"},
	{Code: "IE", Name: "Ireland", Flag: "🇮🇪"},
	{Code: "DK", Name: "Denmark", Flag: "🇩🇰"},
	{Code: "SE", Name: "Sweden", Flag: "🇸🇪"},
	{Code: "FI", Name: "Finland", Flag: "🇫🇮"},
	{Code: "PL", Name: "Poland", Flag: "🇵🇱"},
	{Code: "CZ", Name: "Czech Republic", Flag: "🇨🇿"},
	{Code: "GR", Name: "Greece", Flag: "🇬🇷"},
	{Code: "HU", Name: "Hungary", Flag: "🇭🇺"},
	{Code: "RO", Name: "Romania", Flag: "🇷🇴"},
	{Code: "GB", Name: "United Kingdom", Flag: "🇬🇧"},
	{Code: "CH", Name: "Switzerland", Flag: "🇨🇭"},
	{Code: "NO", Name: "Norway", Flag: "🇳🇴"},
}

// Countries returns a copy of the selectable countries in display order.
func Countries() []Country {
	out := make([]Country, len(countries))
	copy(out, countries)
	return out
}

// LookupCountry accepts either the ISO code or the exact display name.
func LookupCountry(value string) (Country, error) {
	v := strings.TrimSpace(value)
	for _, c := range countries {
		if strings.EqualFold(c.Code, v) || c.Name == v {
			return c, nil
		}
	}
	return Country{}, NewUnknownCountryError(value)
}
