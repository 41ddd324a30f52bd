package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rapidaai/speech-collector/pkg/utils"
	"github.com/spf13/viper"
)

type LedgerConfig struct {
	// Driver is empty when the submission ledger is disabled.
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=sqlite postgres"`
	Dsn    string `mapstructure:"dsn" validate:"required_with=Driver"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Db       int    `mapstructure:"db"`
}

// Enabled reports whether a redis host was configured.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// RecorderConfig drives the command line recorder.
type RecorderConfig struct {
	ServerUrl  string `mapstructure:"server_url" validate:"required,url"`
	Device     string `mapstructure:"device"`
	SampleRate uint32 `mapstructure:"sample_rate" validate:"required,gt=0"`
	Channels   uint16 `mapstructure:"channels" validate:"required,gt=0"`
	Shuffle    bool   `mapstructure:"shuffle"`
}

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path" validate:"required"`

	// dataset layout
	PublicDir   string `mapstructure:"public_dir" validate:"required"`
	DatasetDir  string `mapstructure:"dataset_dir" validate:"required"`
	PhrasesFile string `mapstructure:"phrases_file" validate:"required"`
	RegionsFile string `mapstructure:"regions_file" validate:"required"`

	MaxUploadBytes   int64  `mapstructure:"max_upload_bytes" validate:"required,gt=0"`
	AudioExtensions  string `mapstructure:"audio_extensions" validate:"required"`
	WriteConcurrency int    `mapstructure:"write_concurrency" validate:"required,gt=0"`
	CorsOrigins      string `mapstructure:"cors_origins" validate:"required"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required"`

	SubmissionTTL time.Duration `mapstructure:"submission_ttl" validate:"required"`

	LedgerConfig LedgerConfig `mapstructure:"ledger"`
	RedisConfig  RedisConfig  `mapstructure:"redis"`

	RecorderConfig RecorderConfig `mapstructure:"recorder"`
}

// Extensions splits the configured comma separated audio extensions, making
// sure every entry carries its leading dot.
func (cfg *AppConfig) Extensions() []string {
	var out []string
	for _, ext := range utils.SplitList(cfg.AudioExtensions, ",") {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// Origins splits the configured comma separated CORS origins.
func (cfg *AppConfig) Origins() []string {
	return utils.SplitList(cfg.CorsOrigins, ",")
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil {
		log.Printf("Reading from env varaibles.")
	}
	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "speech-collector")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 3000)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "./logs")

	v.SetDefault("PUBLIC_DIR", "./public")
	v.SetDefault("DATASET_DIR", "./public/dataset")
	v.SetDefault("PHRASES_FILE", "phrases.txt")
	v.SetDefault("REGIONS_FILE", "regions.txt")

	v.SetDefault("MAX_UPLOAD_BYTES", 50<<20)
	v.SetDefault("AUDIO_EXTENSIONS", ".wav")
	v.SetDefault("WRITE_CONCURRENCY", 4)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("READ_TIMEOUT", "60s")
	v.SetDefault("WRITE_TIMEOUT", "60s")
	v.SetDefault("SUBMISSION_TTL", "24h")

	v.SetDefault("LEDGER__DRIVER", "")
	v.SetDefault("LEDGER__DSN", "")

	v.SetDefault("REDIS__HOST", "")
	v.SetDefault("REDIS__PORT", 6379)
	v.SetDefault("REDIS__PASSWORD", "")
	v.SetDefault("REDIS__DB", 0)

	v.SetDefault("RECORDER__SERVER_URL", "http://localhost:3000")
	v.SetDefault("RECORDER__DEVICE", "")
	v.SetDefault("RECORDER__SAMPLE_RATE", 16000)
	v.SetDefault("RECORDER__CHANNELS", 1)
	v.SetDefault("RECORDER__SHUFFLE", false)
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
