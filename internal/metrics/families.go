package metrics

// FamilyID identifies one weather metric family independently of its exposed name.
type FamilyID string

const (
	Temperature         FamilyID = "temperature"
	FeelsLike           FamilyID = "feels_like"
	TemperatureMin      FamilyID = "temperature_min"
	TemperatureMax      FamilyID = "temperature_max"
	Pressure            FamilyID = "pressure"
	PressureSeaLevel    FamilyID = "pressure_sea_level"
	PressureGroundLevel FamilyID = "pressure_ground_level"
	Humidity            FamilyID = "humidity"
	WindSpeed           FamilyID = "wind_speed"
	WindGust            FamilyID = "wind_gust"
	WindDirection       FamilyID = "wind_direction"
	CloudCoverage       FamilyID = "cloud_coverage"
	Rain1h              FamilyID = "rain_1h"
	Rain3h              FamilyID = "rain_3h"
	Snow1h              FamilyID = "snow_1h"
	Snow3h              FamilyID = "snow_3h"
	Visibility          FamilyID = "visibility"
)

// ValueKind tells whether a family publishes fractional or whole values.
type ValueKind int

const (
	Float ValueKind = iota
	Integer
)

func (k ValueKind) String() string {
	if k == Integer {
		return "integer"
	}
	return "float"
}

const (
	LabelName    = "name"
	LabelCountry = "country"
)

// Family describes one gauge family. Every family is a gauge.
type Family struct {
	ID     FamilyID
	Name   string
	Help   string
	Kind   ValueKind
	Labels []string
}

var locationLabels = []string{LabelName, LabelCountry}

// Families is the table of weather families published by the exporter.
var Families = []Family{
	{ID: Temperature, Name: "openweathermap_temperature", Kind: Float, Labels: locationLabels,
		Help: "Current temperature in the configured unit system"},
	{ID: FeelsLike, Name: "openweathermap_feels_like_temperature", Kind: Float, Labels: locationLabels,
		Help: "Perceived temperature in the configured unit system"},
	{ID: TemperatureMin, Name: "openweathermap_minimal_temperature", Kind: Float, Labels: locationLabels,
		Help: "Minimal temperature currently observed in the area"},
	{ID: TemperatureMax, Name: "openweathermap_maximal_temperature", Kind: Float, Labels: locationLabels,
		Help: "Maximal temperature currently observed in the area"},
	{ID: Pressure, Name: "openweathermap_pressure_pascal", Kind: Integer, Labels: locationLabels,
		Help: "Atmospheric pressure in Pa"},
	{ID: PressureSeaLevel, Name: "openweathermap_sea_level_pressure_pascal", Kind: Integer, Labels: locationLabels,
		Help: "Atmospheric pressure at sea level in Pa"},
	{ID: PressureGroundLevel, Name: "openweathermap_ground_level_pressure_pascal", Kind: Integer, Labels: locationLabels,
		Help: "Atmospheric pressure at ground level in Pa"},
	{ID: Humidity, Name: "openweathermap_humidity_ratio", Kind: Float, Labels: locationLabels,
		Help: "Relative humidity as a fraction between 0 and 1"},
	{ID: WindSpeed, Name: "openweathermap_wind_speed", Kind: Float, Labels: locationLabels,
		Help: "Wind speed in the configured unit system"},
	{ID: WindGust, Name: "openweathermap_wind_gust_speed", Kind: Float, Labels: locationLabels,
		Help: "Wind gust speed in the configured unit system"},
	{ID: WindDirection, Name: "openweathermap_wind_direction_degree", Kind: Integer, Labels: locationLabels,
		Help: "Meteorological wind direction in degrees"},
	{ID: CloudCoverage, Name: "openweathermap_cloud_coverage_ratio", Kind: Float, Labels: locationLabels,
		Help: "Cloud coverage as a fraction between 0 and 1"},
	{ID: Rain1h, Name: "openweathermap_rain_1h_millimeter", Kind: Float, Labels: locationLabels,
		Help: "Rain volume of the last hour in mm"},
	{ID: Rain3h, Name: "openweathermap_rain_3h_millimeter", Kind: Float, Labels: locationLabels,
		Help: "Rain volume of the last three hours in mm"},
	{ID: Snow1h, Name: "openweathermap_snow_1h_millimeter", Kind: Float, Labels: locationLabels,
		Help: "Snow volume of the last hour in mm"},
	{ID: Snow3h, Name: "openweathermap_snow_3h_millimeter", Kind: Float, Labels: locationLabels,
		Help: "Snow volume of the last three hours in mm"},
	{ID: Visibility, Name: "openweathermap_visibility_meter", Kind: Integer, Labels: locationLabels,
		Help: "Visibility in m"},
}
