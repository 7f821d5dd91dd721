package weather

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is wrapped by DecodeError when a required field is absent.
var ErrMissingField = errors.New("required field missing")

// DecodeError reports a payload that could not be turned into an Observation.
// Path is the dotted JSON path of the offending field, or "$" for the document itself.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// payload mirrors the upstream JSON. Every leaf is optional here; Decode
// enforces which of them are required.
type payload struct {
	Name       Opt[string]        `json:"name"`
	Coord      Opt[Coordinates]   `json:"coord"`
	Weather    []Condition        `json:"weather"`
	Main       mainPayload        `json:"main"`
	Visibility Opt[int64]         `json:"visibility"`
	Wind       windPayload        `json:"wind"`
	Clouds     cloudsPayload      `json:"clouds"`
	Rain       Opt[Precipitation] `json:"rain"`
	Snow       Opt[Precipitation] `json:"snow"`
	DT         Opt[int64]         `json:"dt"`
	Sys        sysPayload         `json:"sys"`
}

type mainPayload struct {
	Temp        Opt[float64] `json:"temp"`
	FeelsLike   Opt[float64] `json:"feels_like"`
	TempMin     Opt[float64] `json:"temp_min"`
	TempMax     Opt[float64] `json:"temp_max"`
	Pressure    Opt[int64]   `json:"pressure"`
	Humidity    Opt[int64]   `json:"humidity"`
	SeaLevel    Opt[int64]   `json:"sea_level"`
	GroundLevel Opt[int64]   `json:"grnd_level"`
}

type windPayload struct {
	Speed Opt[float64] `json:"speed"`
	Deg   Opt[int64]   `json:"deg"`
	Gust  Opt[float64] `json:"gust"`
}

type cloudsPayload struct {
	All Opt[int64] `json:"all"`
}

type sysPayload struct {
	Country Opt[string] `json:"country"`
}

// Decode parses an upstream current-weather document.
func Decode(data []byte) (Observation, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Observation{}, &DecodeError{Path: typeErr.Field, Err: err}
		}
		return Observation{}, &DecodeError{Path: "$", Err: err}
	}

	var missing string
	need := func(path string, present bool) {
		if missing == "" && !present {
			missing = path
		}
	}
	need("name", p.Name.Present())
	need("sys.country", p.Sys.Country.Present())
	need("main.temp", p.Main.Temp.Present())
	need("main.pressure", p.Main.Pressure.Present())
	need("main.humidity", p.Main.Humidity.Present())
	need("wind.speed", p.Wind.Speed.Present())
	need("wind.deg", p.Wind.Deg.Present())
	need("clouds.all", p.Clouds.All.Present())
	if missing != "" {
		return Observation{}, &DecodeError{Path: missing, Err: ErrMissingField}
	}

	name, _ := p.Name.Get()
	country, _ := p.Sys.Country.Get()
	temp, _ := p.Main.Temp.Get()
	pressure, _ := p.Main.Pressure.Get()
	humidity, _ := p.Main.Humidity.Get()
	speed, _ := p.Wind.Speed.Get()
	deg, _ := p.Wind.Deg.Get()
	clouds, _ := p.Clouds.All.Get()

	return Observation{
		Name:       name,
		Country:    country,
		Coord:      p.Coord,
		DT:         p.DT,
		Visibility: p.Visibility,
		Conditions: p.Weather,
		Main: Main{
			Temp:        temp,
			FeelsLike:   p.Main.FeelsLike,
			TempMin:     p.Main.TempMin,
			TempMax:     p.Main.TempMax,
			Pressure:    pressure,
			Humidity:    humidity,
			SeaLevel:    p.Main.SeaLevel,
			GroundLevel: p.Main.GroundLevel,
		},
		Wind: Wind{
			Speed: speed,
			Deg:   deg,
			Gust:  p.Wind.Gust,
		},
		Clouds: Clouds{All: clouds},
		Rain:   p.Rain,
		Snow:   p.Snow,
	}, nil
}
