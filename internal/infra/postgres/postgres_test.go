package postgres

import (
	"testing"
	"time"

	"github.com/sifan077/GeoLink/config"
)

func TestConnString(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PostgresConfig
		want string
	}{
		{
			name: "defaults",
			cfg:  config.PostgresConfig{Database: "geolink"},
			want: "postgres://localhost:5432/geolink?sslmode=disable",
		},
		{
			name: "credentials",
			cfg: config.PostgresConfig{
				Host: "db", Port: 6543, User: "app", Password: "p@ss word",
				Database: "geolink", SSLMode: "require",
			},
			want: "postgres://app:p%40ss%20word@db:6543/geolink?sslmode=require",
		},
		{
			name: "user only",
			cfg:  config.PostgresConfig{User: "app", Database: "geolink"},
			want: "postgres://app@localhost:5432/geolink?sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConnString(tt.cfg); got != tt.want {
				t.Fatalf("ConnString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty value, got %v", got)
	}
	if got := parseDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for malformed value, got %v", got)
	}
	if got := parseDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
