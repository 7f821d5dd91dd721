package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Location is a configured query term. It is passed verbatim to the upstream API.
type Location string

// Key returns a canonical string key for logging and indexing.
func (l Location) Key() string {
	return string(l)
}

// Opt holds a value that may be absent from the upstream payload.
// A missing key and an explicit JSON null both decode to the absent state;
// zero is a present value.
type Opt[T any] struct {
	value T
	set   bool
}

// Some returns a present Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// Get returns the value and whether it was present.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// Present reports whether the field was present.
func (o Opt[T]) Present() bool {
	return o.set
}

func (o Opt[T]) String() string {
	if !o.set {
		return "<absent>"
	}
	return fmt.Sprint(o.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Opt[T]{value: v, set: true}
	return nil
}

// MarshalJSON implements json.Marshaler; absent values encode as null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// Observation is the decoded current-weather payload for one location.
type Observation struct {
	Name       string
	Country    string
	Coord      Opt[Coordinates]
	DT         Opt[int64]
	Visibility Opt[int64]
	Conditions []Condition

	Main   Main
	Wind   Wind
	Clouds Clouds
	Rain   Opt[Precipitation]
	Snow   Opt[Precipitation]
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Condition is one entry of the upstream "weather" list.
type Condition struct {
	ID          int64  `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Main carries temperatures in the configured unit system and pressure in hPa.
type Main struct {
	Temp        float64
	FeelsLike   Opt[float64]
	TempMin     Opt[float64]
	TempMax     Opt[float64]
	Pressure    int64
	Humidity    int64
	SeaLevel    Opt[int64]
	GroundLevel Opt[int64]
}

type Wind struct {
	Speed float64
	Deg   int64
	Gust  Opt[float64]
}

type Clouds struct {
	All int64
}

// Precipitation holds the rain or snow totals in millimetres.
type Precipitation struct {
	OneHour    Opt[float64] `json:"1h"`
	ThreeHours Opt[float64] `json:"3h"`
}
