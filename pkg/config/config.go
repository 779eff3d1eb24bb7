package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	HTTP      HTTPServerConfig
	Workshop  WorkshopConfig
	Optimizer OptimizerConfig
	Economics EconomicsConfig
	SMTP      SMTPConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicEvents   string
	NumPartitions int
}

type HTTPServerConfig struct {
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	MaxListeners        int
	ListenerIdleTimeout time.Duration
	AllowedOrigins      []string
}

// WorkshopConfig describes the team roster and where artifacts live.
type WorkshopConfig struct {
	TeamNames  []string
	DataDir    string
	ResultsDir string
}

// DumpsDir holds one optimizer dump per team.
func (w WorkshopConfig) DumpsDir() string {
	return filepath.Join(w.ResultsDir, "optimisation_results", "dumps")
}

// TablesDir holds the cohort comparison table.
func (w WorkshopConfig) TablesDir() string {
	return filepath.Join(w.ResultsDir, "optimisation_results", "tables")
}

type OptimizerConfig struct {
	Mode    string // "command" or "demo"
	Command string
	Args    []string
	WorkDir string
}

// EconomicsConfig carries the cost and emission factors used by the KPI
// analysis. Costs are in EUR, energies in kWh, emission factors in kg/kWh.
type EconomicsConfig struct {
	Lifetime                int
	WACC                    float64
	InvestCostCHP           float64
	InvestCostBoiler        float64
	InvestCostWind          float64
	InvestCostHeatPump      float64
	InvestCostStorageEl     float64
	InvestCostStorageTh     float64
	InvestCostPV            float64
	InvestCostSolarThermal  float64
	InvestCostPVPlant       float64
	PVPlantSurfaceArea      float64
	VarCostGas              float64
	VarCostElectricityGrid  float64
	VarCostHeatGrid         float64
	EmissionElectricityGrid float64
	EmissionHeatGrid        float64
	EmissionGas             float64
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LogConfig struct {
	Level string
	File  string
}

var defaultTeamNames = "Moabit,Kreuzberg,Frohnau,Adlershof,Wedding,Tegel,Pankow,Treptow"

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "workshop_user"),
			Password: getEnv("DB_PASSWORD", "workshop_pass"),
			DBName:   getEnv("DB_NAME", "workshop_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:       getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			TopicEvents:   getEnv("KAFKA_TOPIC_EVENTS", "workshop.events"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 1),
		},
		HTTP: HTTPServerConfig{
			Port:                getEnvAsInt("HTTP_PORT", 8000),
			ReadTimeout:         getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:        getEnvAsDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			MaxListeners:        getEnvAsInt("WS_MAX_LISTENERS", 500),
			ListenerIdleTimeout: getEnvAsDuration("WS_IDLE_TIMEOUT", 2*time.Minute),
			AllowedOrigins:      getEnvAsList("HTTP_ALLOWED_ORIGINS", "*"),
		},
		Workshop: WorkshopConfig{
			TeamNames:  getEnvAsList("WORKSHOP_TEAM_NAMES", defaultTeamNames),
			DataDir:    getEnv("WORKSHOP_DATA_DIR", "data"),
			ResultsDir: getEnv("WORKSHOP_RESULTS_DIR", "results"),
		},
		Optimizer: OptimizerConfig{
			Mode:    getEnv("OPTIMIZER_MODE", "command"),
			Command: getEnv("OPTIMIZER_COMMAND", "python3"),
			Args:    getEnvAsList("OPTIMIZER_ARGS", "src/run_team.py"),
			WorkDir: getEnv("OPTIMIZER_WORKDIR", "."),
		},
		Economics: EconomicsConfig{
			Lifetime:                getEnvAsInt("ECON_LIFETIME", 20),
			WACC:                    getEnvAsFloat("ECON_WACC", 0.05),
			InvestCostCHP:           getEnvAsFloat("ECON_INVEST_CHP", 1_500_000),
			InvestCostBoiler:        getEnvAsFloat("ECON_INVEST_BOILER", 250_000),
			InvestCostWind:          getEnvAsFloat("ECON_INVEST_WIND", 3_500_000),
			InvestCostHeatPump:      getEnvAsFloat("ECON_INVEST_HEATPUMP", 900_000),
			InvestCostStorageEl:     getEnvAsFloat("ECON_INVEST_STORAGE_EL", 2_000_000),
			InvestCostStorageTh:     getEnvAsFloat("ECON_INVEST_STORAGE_TH", 300_000),
			InvestCostPV:            getEnvAsFloat("ECON_INVEST_PV", 700_000),
			InvestCostSolarThermal:  getEnvAsFloat("ECON_INVEST_SOLARTHERMAL", 1_200_000),
			InvestCostPVPlant:       getEnvAsFloat("ECON_INVEST_PV_PP", 650_000),
			PVPlantSurfaceArea:      getEnvAsFloat("ECON_PV_PP_SURFACE_AREA", 10),
			VarCostGas:              getEnvAsFloat("ECON_VAR_COST_GAS", 0.06),
			VarCostElectricityGrid:  getEnvAsFloat("ECON_VAR_COST_GRID_EL", 0.30),
			VarCostHeatGrid:         getEnvAsFloat("ECON_VAR_COST_GRID_TH", 0.12),
			EmissionElectricityGrid: getEnvAsFloat("ECON_EMISSION_EL", 0.40),
			EmissionHeatGrid:        getEnvAsFloat("ECON_EMISSION_HEAT", 0.25),
			EmissionGas:             getEnvAsFloat("ECON_EMISSION_GAS", 0.20),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "workshop@example.com"),
			To:       getEnv("SMTP_TO", "facilitator@example.com"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if len(config.Workshop.TeamNames) == 0 {
		return nil, fmt.Errorf("WORKSHOP_TEAM_NAMES must name at least one team")
	}
	switch config.Optimizer.Mode {
	case "command", "demo":
	default:
		return nil, fmt.Errorf("unknown OPTIMIZER_MODE %q (want command or demo)", config.Optimizer.Mode)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty entries.
func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
