package weather

import "github.com/i474232898/openweathermap-exporter/internal/metrics"

// Sample is one normalized value ready to be written to a metric family.
type Sample struct {
	Family metrics.FamilyID
	Value  float64
}

const hectopascal = 100

// Normalize converts an observation into published units: pressure in Pa,
// humidity and cloud coverage as fractions. Temperatures and wind are passed
// through in the unit system the upstream API was queried with. Absent
// optional fields produce no sample.
func Normalize(o Observation) []Sample {
	samples := []Sample{
		{metrics.Temperature, o.Main.Temp},
		{metrics.Pressure, float64(o.Main.Pressure * hectopascal)},
		{metrics.Humidity, percentToRatio(o.Main.Humidity)},
		{metrics.WindSpeed, o.Wind.Speed},
		{metrics.WindDirection, float64(o.Wind.Deg)},
		{metrics.CloudCoverage, percentToRatio(o.Clouds.All)},
	}

	add := func(id metrics.FamilyID, v float64, ok bool) {
		if ok {
			samples = append(samples, Sample{id, v})
		}
	}
	addPressure := func(id metrics.FamilyID, hpa int64, ok bool) {
		add(id, float64(hpa*hectopascal), ok)
	}

	v, ok := o.Main.FeelsLike.Get()
	add(metrics.FeelsLike, v, ok)
	v, ok = o.Main.TempMin.Get()
	add(metrics.TemperatureMin, v, ok)
	v, ok = o.Main.TempMax.Get()
	add(metrics.TemperatureMax, v, ok)

	hpa, ok := o.Main.SeaLevel.Get()
	addPressure(metrics.PressureSeaLevel, hpa, ok)
	hpa, ok = o.Main.GroundLevel.Get()
	addPressure(metrics.PressureGroundLevel, hpa, ok)

	v, ok = o.Wind.Gust.Get()
	add(metrics.WindGust, v, ok)

	if rain, ok := o.Rain.Get(); ok {
		v, ok = rain.OneHour.Get()
		add(metrics.Rain1h, v, ok)
		v, ok = rain.ThreeHours.Get()
		add(metrics.Rain3h, v, ok)
	}
	if snow, ok := o.Snow.Get(); ok {
		v, ok = snow.OneHour.Get()
		add(metrics.Snow1h, v, ok)
		v, ok = snow.ThreeHours.Get()
		add(metrics.Snow3h, v, ok)
	}

	if m, ok := o.Visibility.Get(); ok {
		add(metrics.Visibility, float64(m), true)
	}

	return samples
}

func percentToRatio(p int64) float64 {
	return float64(p) / 100
}
