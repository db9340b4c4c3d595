package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "file", cfg.BoundarySource)
	require.Equal(t, "tzid", cfg.BoundaryNameKey)
	require.Equal(t, "geoclue", cfg.LocationProvider)
	require.Equal(t, "timedate", cfg.Sink)
	require.Equal(t, 1000.0, cfg.MinDistance)
	require.Equal(t, time.Hour, cfg.CacheTTL)
	require.Equal(t, "/api", cfg.APIBase)
	require.Empty(t, cfg.Addr)
	require.Equal(t, "127.0.0.1,::1", cfg.APIAllow)
}

func TestLoadAPIAllowExplicitEmpty(t *testing.T) {
	t.Setenv("API_ALLOW", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.APIAllow)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BOUNDARY_SOURCE", "Postgres")
	t.Setenv("BOUNDARY_VALIDATE_SIMPLE", "true")
	t.Setenv("RESOLVER_FALLBACK", "latlong")
	t.Setenv("UPDATER_MIN_DISTANCE_M", "2500")
	t.Setenv("LOCATION_PROVIDER", "static")
	t.Setenv("LOCATION_STATIC_LAT", "48.85")
	t.Setenv("LOCATION_STATIC_LON", "2.35")
	t.Setenv("SINK", "log")
	t.Setenv("GEOIP_INTERVAL_S", "60")
	t.Setenv("RESOLVER_CACHE_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.BoundarySource)
	require.True(t, cfg.ValidateSimple)
	require.Equal(t, "latlong", cfg.Fallback)
	require.Equal(t, 2500.0, cfg.MinDistance)
	require.Equal(t, 48.85, cfg.StaticLat)
	require.Equal(t, 2.35, cfg.StaticLon)
	require.Equal(t, "log", cfg.Sink)
	require.Equal(t, time.Minute, cfg.GeoIPInterval)
	require.Equal(t, 4096, cfg.CacheSize)
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	for key, val := range map[string]string{
		"BOUNDARY_SOURCE":   "s3",
		"LOCATION_PROVIDER": "gps",
		"SINK":              "ntp",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadGeoIPNeedsAddr(t *testing.T) {
	t.Setenv("LOCATION_PROVIDER", "geoip")
	_, err := Load()
	require.Error(t, err)
	t.Setenv("GEOIP_ADDR", "203.0.113.7")
	_, err = Load()
	require.NoError(t, err)
}
