package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tailored-agentic-units/toolbridge/core/protocol"
	"github.com/tailored-agentic-units/toolbridge/tools"
)

const (
	geocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	openMeteoURL = "https://api.open-meteo.com/v1/forecast"
	nwsURL       = "https://api.weather.gov"

	userAgent = "toolbridge-weather/0.1.0"
)

var weatherClient = &http.Client{Timeout: 15 * time.Second}

func buildRegistry() *tools.Registry {
	registry := tools.New()

	must(registry.Register(protocol.Tool{
		Name:        "get_weather",
		Description: "Get current weather for a location",
		Parameters: map[string]protocol.ParameterSpec{
			"location": {Type: "string", Required: true, Description: "City name or location"},
		},
	}, handleGetWeather))

	must(registry.Register(protocol.Tool{
		Name:        "get_forecast",
		Description: "Get weather forecast for a location",
		Parameters: map[string]protocol.ParameterSpec{
			"latitude":  {Type: "number", Required: true, Description: "Latitude of the location"},
			"longitude": {Type: "number", Required: true, Description: "Longitude of the location"},
		},
	}, handleGetForecast))

	must(registry.Register(protocol.Tool{
		Name:        "get_alerts",
		Description: "Get weather alerts for a US state",
		Parameters: map[string]protocol.ParameterSpec{
			"state": {Type: "string", Required: true, Description: "Two-letter US state code (e.g. CA, NY)"},
		},
	}, handleGetAlerts))

	return registry
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("failed to register tool: %v", err))
	}
}

func handleGetWeather(ctx context.Context, args map[string]any) (any, error) {
	location, _ := args["location"].(string)
	if location == "" {
		return nil, fmt.Errorf("location must be a non-empty string")
	}

	var geo struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	query := url.Values{"name": {location}, "count": {"1"}}
	if err := getJSON(ctx, geocodingURL+"?"+query.Encode(), &geo); err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}
	if len(geo.Results) == 0 {
		return nil, fmt.Errorf("unknown location: %s", location)
	}
	place := geo.Results[0]

	var weather struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
			Windspeed   float64 `json:"windspeed"`
			Weathercode int     `json:"weathercode"`
		} `json:"current_weather"`
	}
	query = url.Values{
		"latitude":        {fmt.Sprintf("%g", place.Latitude)},
		"longitude":       {fmt.Sprintf("%g", place.Longitude)},
		"current_weather": {"true"},
	}
	if err := getJSON(ctx, openMeteoURL+"?"+query.Encode(), &weather); err != nil {
		return nil, fmt.Errorf("weather lookup failed: %w", err)
	}

	return map[string]any{
		"location":      fmt.Sprintf("%s, %s", place.Name, place.Country),
		"temperature_c": weather.CurrentWeather.Temperature,
		"windspeed_kmh": weather.CurrentWeather.Windspeed,
		"weathercode":   weather.CurrentWeather.Weathercode,
	}, nil
}

func handleGetForecast(ctx context.Context, args map[string]any) (any, error) {
	latitude, latOK := args["latitude"].(float64)
	longitude, lonOK := args["longitude"].(float64)
	if !latOK || !lonOK {
		return nil, fmt.Errorf("latitude and longitude must be numbers")
	}

	var point struct {
		Properties struct {
			Forecast string `json:"forecast"`
		} `json:"properties"`
	}
	pointURL := fmt.Sprintf("%s/points/%.4f,%.4f", nwsURL, latitude, longitude)
	if err := getJSON(ctx, pointURL, &point); err != nil {
		return nil, fmt.Errorf("point lookup failed: %w", err)
	}
	if point.Properties.Forecast == "" {
		return nil, fmt.Errorf("no forecast available for %.4f,%.4f", latitude, longitude)
	}

	var forecast struct {
		Properties struct {
			Periods []struct {
				Name             string `json:"name"`
				Temperature      int    `json:"temperature"`
				TemperatureUnit  string `json:"temperatureUnit"`
				ShortForecast    string `json:"shortForecast"`
				DetailedForecast string `json:"detailedForecast"`
			} `json:"periods"`
		} `json:"properties"`
	}
	if err := getJSON(ctx, point.Properties.Forecast, &forecast); err != nil {
		return nil, fmt.Errorf("forecast lookup failed: %w", err)
	}

	periods := forecast.Properties.Periods
	if len(periods) > 5 {
		periods = periods[:5]
	}

	out := make([]map[string]any, 0, len(periods))
	for _, p := range periods {
		out = append(out, map[string]any{
			"name":        p.Name,
			"temperature": fmt.Sprintf("%d°%s", p.Temperature, p.TemperatureUnit),
			"forecast":    p.DetailedForecast,
		})
	}
	return map[string]any{"periods": out}, nil
}

func handleGetAlerts(ctx context.Context, args map[string]any) (any, error) {
	state, _ := args["state"].(string)
	state = strings.ToUpper(strings.TrimSpace(state))
	if len(state) != 2 {
		return nil, fmt.Errorf("state must be a two-letter US state code")
	}

	var alerts struct {
		Features []struct {
			Properties struct {
				Event       string `json:"event"`
				Severity    string `json:"severity"`
				Headline    string `json:"headline"`
				Description string `json:"description"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := getJSON(ctx, nwsURL+"/alerts/active/area/"+state, &alerts); err != nil {
		return nil, fmt.Errorf("alert lookup failed: %w", err)
	}

	if len(alerts.Features) == 0 {
		return map[string]any{"alerts": []any{}, "message": "No active alerts for " + state}, nil
	}

	out := make([]map[string]any, 0, len(alerts.Features))
	for _, f := range alerts.Features {
		out = append(out, map[string]any{
			"event":    f.Properties.Event,
			"severity": f.Properties.Severity,
			"headline": f.Properties.Headline,
		})
	}
	return map[string]any{"alerts": out}, nil
}

func getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := weatherClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
