package model

// Province is a top-level administrative region.
type Province struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// City belongs to exactly one province. Lat/Lng come from the offline
// geocoding step and may be absent.
type City struct {
	ID         uint64   `json:"id"`
	ProvinceID uint64   `json:"province_id"`
	Name       string   `json:"name"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}
