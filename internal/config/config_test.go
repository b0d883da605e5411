package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name:    "default config",
			envVars: map[string]string{},
			wantErr: false,
		},
		{
			name: "custom config",
			envVars: map[string]string{
				"SERVICE_NAME":     "test-service",
				"SITE_IDENTITY":    "PoolSite",
				"MESSAGE_MAX_AGE":  "90660",
				"FEE_PERCENT":      "2.5",
				"HASHES_PER_SHARE": "65536",
				"CURRENCIES":       "BTC:0:1,DOGE:30:0",
			},
			wantErr: false,
		},
		{
			name: "invalid fee",
			envVars: map[string]string{
				"FEE_PERCENT": "150",
			},
			wantErr: true,
		},
		{
			name: "invalid rpc port",
			envVars: map[string]string{
				"NODE_RPC_PORT": "99999",
			},
			wantErr: true,
		},
		{
			name: "malformed currency",
			envVars: map[string]string{
				"CURRENCIES": "BTC",
			},
			wantErr: true,
		},
		{
			name: "bad currency version",
			envVars: map[string]string{
				"CURRENCIES": "BTC:abc",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				if err := os.Setenv(key, value); err != nil {
					t.Fatalf("failed to set environment variable %s: %v", key, err)
				}
			}
			defer func() {
				for key := range tt.envVars {
					if err := os.Unsetenv(key); err != nil {
						t.Logf("failed to unset environment variable %s: %v", key, err)
					}
				}
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if cfg.SiteIdentity == "" {
					t.Error("SiteIdentity should not be empty")
				}
				if cfg.MessageMaxAge <= 0 {
					t.Error("MessageMaxAge should be positive")
				}
				if len(cfg.Currencies) == 0 {
					t.Error("Currencies should not be empty")
				}
			}
		})
	}
}

func TestMessageMaxAgeDefault(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MessageMaxAge != 90660*time.Second {
		t.Errorf("MessageMaxAge = %v, want 90660s", cfg.MessageMaxAge)
	}
}

func TestParseHostEndpoints(t *testing.T) {
	got := parseHostEndpoints("us-east=stratum+tcp://us.pool:3333, eu=stratum+tcp://eu.pool:3333,bad entry,=nohost")

	if len(got) != 2 {
		t.Fatalf("parsed %d endpoints, want 2: %v", len(got), got)
	}
	if got["us-east"] != "stratum+tcp://us.pool:3333" {
		t.Errorf("us-east = %q", got["us-east"])
	}
	if got["eu"] != "stratum+tcp://eu.pool:3333" {
		t.Errorf("eu = %q", got["eu"])
	}
}

func TestParseCurrencies(t *testing.T) {
	seeds, err := parseCurrencies("BTC:0:1,LTC:48|50:1,DOGE:30")
	if err != nil {
		t.Fatalf("parseCurrencies() error = %v", err)
	}
	if len(seeds) != 3 {
		t.Fatalf("parsed %d currencies, want 3", len(seeds))
	}
	if seeds[0].Name != "BTC" || len(seeds[0].Versions) != 1 || seeds[0].Versions[0] != 0 {
		t.Errorf("BTC seed = %+v", seeds[0])
	}
	if !seeds[1].Exchangeable || len(seeds[1].Versions) != 2 {
		t.Errorf("LTC seed = %+v", seeds[1])
	}
	if seeds[2].Exchangeable {
		t.Error("DOGE should default to non-exchangeable")
	}
}
