package dto

import "tickwise/internal/service"

type EntitlementsResponse struct {
	PlanName string         `json:"plan_name"`
	Features map[string]any `json:"features"`
}

// EntitlementsResponseFromService flattens the tagged feature values into
// plain JSON scalars for clients.
func EntitlementsResponseFromService(entitlements *service.Entitlements) EntitlementsResponse {
	features := make(map[string]any, len(entitlements.Features))
	for key, value := range entitlements.Features {
		switch value.Kind {
		case service.FeatureKindBool:
			features[key] = value.Bool
		case service.FeatureKindInt:
			features[key] = value.Int
		default:
			features[key] = value.String
		}
	}
	return EntitlementsResponse{PlanName: entitlements.PlanName, Features: features}
}
