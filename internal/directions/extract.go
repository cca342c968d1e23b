package directions

// Polyline returns the encoded overview geometry of the first route,
// or "" when the response has no usable route.
func Polyline(resp *ProviderResponse) string {
	if resp == nil || len(resp.Routes) == 0 {
		return ""
	}
	return resp.Routes[0].OverviewPolyline
}

// TotalDistanceMeters sums the distance of every leg of the first route.
// A route through waypoints has one leg per stop, so reading only the first leg undercounts.
func TotalDistanceMeters(resp *ProviderResponse) int {
	if resp == nil || len(resp.Routes) == 0 {
		return 0
	}
	total := 0
	for _, leg := range resp.Routes[0].Legs {
		total += leg.DistanceMeters
	}
	return total
}

// TotalDurationSeconds sums the duration of every leg of the first route.
func TotalDurationSeconds(resp *ProviderResponse) int {
	if resp == nil || len(resp.Routes) == 0 {
		return 0
	}
	total := 0
	for _, leg := range resp.Routes[0].Legs {
		total += leg.DurationSeconds
	}
	return total
}
