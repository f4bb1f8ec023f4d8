// Package geo содержит геометрию на сфере для расчета расстояний между точками.
package geo

import (
	"math"

	"delivery-dispatch/internal/models"
)

// EarthRadiusKm - средний радиус Земли, используемый формулой гаверсинусов
const EarthRadiusKm = 6371.0

// DistanceKm возвращает расстояние по большой окружности между двумя точками в километрах
func DistanceKm(a, b models.Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	// округление может дать h чуть больше 1 для противоположных точек
	h = math.Min(1, h)

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
