package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jonwraymond/agriops/cache"
	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/observe"
	"github.com/jonwraymond/agriops/weather"
)

// WeatherRequest holds the /weather query.
type WeatherRequest struct {
	Lat      *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon      *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Location string   `query:"location" validate:"max=200"`
}

// WeatherResponse is the body of the /weather endpoint.
type WeatherResponse struct {
	Status string `json:"status"`
	weather.Conditions
	ExecutionTime float64 `json:"execution_time"`
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	const op = "server.weather"
	start := s.now()

	req, err := parseWeatherQuery(op, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validateStruct(op, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.weather.Configured() {
		s.writeError(w, r, fault.Configuration(op, "Weather API key not configured"))
		return
	}

	lat, lon := *req.Lat, *req.Lon
	key := cache.CoordinateKey(cache.NamespaceWeather, lat, lon)
	res, err := s.cache.Fetch(r.Context(), key, s.weatherPolicy(), func(ctx context.Context) ([]byte, error) {
		s.logger.Info(ctx, "fetching weather",
			observe.F("lat", lat),
			observe.F("lon", lon),
			observe.F("location", req.Location),
		)
		cond, err := s.weather.Current(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cond)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var cond weather.Conditions
	if err := json.Unmarshal(res.Value, &cond); err != nil {
		s.writeError(w, r, fault.Internal(op, err))
		return
	}
	writeJSON(w, http.StatusOK, WeatherResponse{Status: "success", Conditions: cond, ExecutionTime: s.elapsed(start)})
}

func (s *Server) weatherPolicy() cache.Policy {
	if s.weatherMaxAge > 0 {
		return cache.Policy{MaxAge: s.weatherMaxAge}
	}
	return cache.WeatherPolicy()
}

func parseWeatherQuery(op string, r *http.Request) (WeatherRequest, error) {
	q := r.URL.Query()
	req := WeatherRequest{Location: q.Get("location")}
	for name, dst := range map[string]**float64{"lat": &req.Lat, "lon": &req.Lon} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, fault.Wrap(fault.KindValidation, op, name+": value is not a valid float", err)
		}
		*dst = &v
	}
	return req, nil
}
