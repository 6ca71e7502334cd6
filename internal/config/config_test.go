package config

import (
	"os"
	"testing"
	"time"
)

func setBase() {
	os.Clearenv()
	os.Setenv("ORG_API_BASE_URL", "https://orgs.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setBase()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":3000")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.Mode != ModeSaaS || !cfg.SaaS() {
		t.Errorf("Mode = %q, want saas", cfg.Mode)
	}
	if cfg.CacheBackend != CacheMemory {
		t.Errorf("CacheBackend = %q, want memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL() != 0 {
		t.Errorf("CacheTTL = %v, want 0", cfg.CacheTTL())
	}
	if cfg.GuardRedirectPath != "/" {
		t.Errorf("GuardRedirectPath = %q, want /", cfg.GuardRedirectPath)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log = %q/%q, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.OTLPEndpoint != "" || cfg.OTLPInsecure {
		t.Error("OTLP export should be off by default")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setBase()
	os.Setenv("HTTP_ADDR", ":9000")
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("CACHE_TTL", "5m")
	os.Setenv("CACHE_SIZE", "64")
	os.Setenv("APP_MODE", "SaaS")
	os.Setenv("INITIAL_ORG_ID", "org-1")
	os.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.GRPCAddr != ":9090" {
		t.Errorf("addrs = %q %q, want :9000 :9090", cfg.HTTPAddr, cfg.GRPCAddr)
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL())
	}
	if cfg.CacheSize != 64 {
		t.Errorf("CacheSize = %d, want 64", cfg.CacheSize)
	}
	if cfg.Mode != ModeSaaS {
		t.Errorf("Mode = %q, want normalized saas", cfg.Mode)
	}
	if cfg.InitialOrgID != "org-1" {
		t.Errorf("InitialOrgID = %q, want org-1", cfg.InitialOrgID)
	}
	if !cfg.OTLPInsecure {
		t.Error("OTLPInsecure should be true")
	}
}

func TestLoad_OSSDoesNotNeedOrgAPI(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_MODE", "oss")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SaaS() {
		t.Error("SaaS() = true, want false")
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"saas without org api", map[string]string{"ORG_API_BASE_URL": ""}},
		{"unknown mode", map[string]string{"APP_MODE": "enterprise"}},
		{"unknown cache backend", map[string]string{"CACHE_BACKEND": "memcached"}},
		{"redis without url", map[string]string{"CACHE_BACKEND": "redis"}},
		{"negative cache size", map[string]string{"CACHE_SIZE": "-1"}},
		{"bad ttl", map[string]string{"CACHE_TTL": "soon"}},
		{"negative ttl", map[string]string{"CACHE_TTL": "-1m"}},
		{"relative redirect", map[string]string{"GUARD_REDIRECT_PATH": "home"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setBase()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			cfg, err := Load()
			if err == nil {
				t.Fatal("Load should return error")
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
		})
	}
}

func TestLoad_Redis(t *testing.T) {
	setBase()
	os.Setenv("CACHE_BACKEND", "redis")
	os.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheBackend != CacheRedis {
		t.Errorf("CacheBackend = %q, want redis", cfg.CacheBackend)
	}
}

func TestCacheTTL_Invalid(t *testing.T) {
	cfg := &Config{CacheTTLRaw: "invalid"}
	if cfg.CacheTTL() != 0 {
		t.Errorf("CacheTTL = %v, want 0", cfg.CacheTTL())
	}
}

func TestSaaS_NilConfig(t *testing.T) {
	var cfg *Config
	if cfg.SaaS() {
		t.Error("nil config should not be SaaS")
	}
}
