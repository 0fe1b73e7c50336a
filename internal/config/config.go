package config

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

type HactServiceConfig struct {
	Port        string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	Hact        HactConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

// HactConfig is the policy surface: the monetary trigger levels are stable
// external constants quoted by upstream data, so the defaults here must
// match them verbatim.
type HactConfig struct {
	CountryCode   string
	LocalCurrency string

	CTMRAuditTriggerLevel  decimal.Decimal // 2 500
	CTMRAuditTriggerLevel2 decimal.Decimal // 100 000
	CTMRAuditTriggerLevel3 decimal.Decimal // 500 000
	CTCPAuditTriggerLevel  decimal.Decimal // 50 000

	ExpiringAssessmentLimitYears int
	DefaultHQSupportCost         decimal.Decimal

	// AmendmentRevertsEnded gates the ended→active revert during amendment
	// merge when today still falls inside the programme dates.
	AmendmentRevertsEnded bool
}

func New() *HactServiceConfig {
	return &HactServiceConfig{
		Port: getEnvOrDefault("PORT", "8086"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "hact_service"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       0,
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		Hact: HactConfig{
			CountryCode:                  getEnvOrDefault("COUNTRY_CODE", "LBN"),
			LocalCurrency:                getEnvOrDefault("LOCAL_CURRENCY", "USD"),
			CTMRAuditTriggerLevel:        getEnvDecimal("CT_MR_AUDIT_TRIGGER_LEVEL", "2500"),
			CTMRAuditTriggerLevel2:       getEnvDecimal("CT_MR_AUDIT_TRIGGER_LEVEL_2", "100000"),
			CTMRAuditTriggerLevel3:       getEnvDecimal("CT_MR_AUDIT_TRIGGER_LEVEL_3", "500000"),
			CTCPAuditTriggerLevel:        getEnvDecimal("CT_CP_AUDIT_TRIGGER_LEVEL", "50000"),
			ExpiringAssessmentLimitYears: getEnvInt("EXPIRING_ASSESSMENT_LIMIT_YEARS", 4),
			DefaultHQSupportCost:         getEnvDecimal("DEFAULT_HQ_SUPPORT_COST", "7.0"),
			AmendmentRevertsEnded:        getEnvBool("AMENDMENT_REVERTS_ENDED", true),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}
