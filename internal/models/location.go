package models

type Location struct {
	ID        string
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (l *Location) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
	}
}
