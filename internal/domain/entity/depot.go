package entity

// Depot is a named circular geofence around a loading or offloading point.
type Depot struct {
	ID           string  `json:"id" yaml:"id" bson:"id"`
	Name         string  `json:"name" yaml:"name" bson:"name" validate:"required"`
	Country      string  `json:"country" yaml:"country" bson:"country"`
	Type         string  `json:"type" yaml:"type" bson:"type"`
	Latitude     float64 `json:"latitude" yaml:"latitude" bson:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" yaml:"longitude" bson:"longitude" validate:"gte=-180,lte=180"`
	RadiusMeters float64 `json:"radius" yaml:"radius" bson:"radius" validate:"gt=0"`
}
