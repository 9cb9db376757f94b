package config

import "fmt"

// Настройки движка планировщика.
type AppConfig struct {
	LogLevel string
	// IANA-таймзона бизнеса: в ней считаются "дни" проходов.
	Timezone string
	// Сколько посещений вперёд создаёт один проход по серии.
	SweepHorizon int
	// Cron-выражения проходов.
	MaterializeSpec string
	ReconcileSpec   string
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Timezone:        getEnv("APP_TIMEZONE", "UTC"),
		SweepHorizon:    getEnvInt("SWEEP_HORIZON", 10),
		MaterializeSpec: getEnv("MATERIALIZE_CRON", "30 2 * * *"),
		ReconcileSpec:   getEnv("RECONCILE_CRON", "0 1 * * *"),
	}

	if cfg.SweepHorizon <= 0 {
		return nil, fmt.Errorf("invalid app config: SWEEP_HORIZON must be positive")
	}

	return cfg, nil
}
