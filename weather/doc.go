// Package weather fetches current conditions from OpenWeatherMap.
//
// The API key travels as the appid query parameter. It is stripped from every
// returned error and never logged.
package weather
