package observability

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/tradeway/internal/config"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultServiceName   = "tradeway"
	defaultSamplingRatio = 0.1
	defaultSlowQuery     = 200 * time.Millisecond
)

// Config holds observability settings. Values come from the app config and
// may be overridden by the standard OTEL_* and LOG_* variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	// SQLLogLevel and SQLSlowThreshold drive the gorm query logger. Stock
	// reservation and sequence allocation hold row locks, so slow statements
	// there are worth a warning well before they time out.
	SQLLogLevel      gormlogger.LogLevel
	SQLSlowThreshold time.Duration

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: strings.TrimSpace(cfg.AppName),
		Environment: getenv("DEPLOYMENT_ENV", cfg.Environment),
		Version:     getenv("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getenv("LOG_FORMAT", "json")),

		SQLLogLevel:      sqlLogLevel(getenv("DB_LOG_LEVEL", "warn")),
		SQLSlowThreshold: getenvMillis("DB_SLOW_QUERY_MS", defaultSlowQuery),

		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", defaultSamplingRatio),
	}
	if out.ServiceName == "" {
		out.ServiceName = defaultServiceName
	}
	if protocol := getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); protocol != "" {
		out.OtelExporterProtocol = strings.ToLower(protocol)
	}
	if out.OtelSamplingRatio < 0 || out.OtelSamplingRatio > 1 {
		out.OtelSamplingRatio = defaultSamplingRatio
	}
	out.OtelEnabled = getenvBool("OTEL_ENABLED", !cfg.IsProduction() || out.OtelExporterEndpoint != "")
	return out
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func sqlLogLevel(value string) gormlogger.LogLevel {
	switch strings.ToLower(value) {
	case "silent", "off":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(getenv(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(getenv(key, ""), 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvMillis(key string, def time.Duration) time.Duration {
	ms, err := strconv.Atoi(getenv(key, ""))
	if err != nil || ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
