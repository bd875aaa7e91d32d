package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"video-branding-worker/constant"
)

// Config holds settings only. Live clients (database, broker, storage) are
// built from it once at process start and closed on shutdown.
type Config struct {
	App         App      `yaml:"app"`
	Server      Server   `yaml:"server"`
	Queue       RabbitMQ `yaml:"rabbitmq"`
	PostgresDSN string   `yaml:"postgresql_host"`
	Storage     Storage  `yaml:"storage"`
	MinIO       MinIO    `yaml:"minio"`
	Assets      Assets   `yaml:"assets"`
	FFmpeg      FFmpeg   `yaml:"ffmpeg"`
	Worker      Worker   `yaml:"worker"`
	Limits      Limits   `yaml:"limits"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	User          string `json:"user"`
	Pass          string `json:"pass"`
	Kind          string `json:"kind"`
	ExchangeName  string `json:"exchange_name"`
	QueueName     string `json:"queue_name"`
	RoutingKey    string `json:"routing_key"`
	DLXName       string `json:"dlx_name"`
	DLQName       string `json:"dlq_name"`
	DLQRoutingKey string `json:"dlq_routing_key"`
}

type Storage struct {
	Backend       constant.StorageBackend `yaml:"backend"`
	Bucket        string                  `yaml:"bucket"`
	KeyPrefix     string                  `yaml:"key_prefix"`
	PublicBaseURL string                  `yaml:"public_base_url"`
	Region        string                  `yaml:"region"`
	AccessKey     string                  `yaml:"access_key"`
	SecretKey     string                  `yaml:"secret_key"`
	Endpoint      string                  `yaml:"endpoint"`
	GCSCredsFile  string                  `yaml:"gcs_credentials_file"`
	LocalRoot     string                  `yaml:"local_root"`
	SFTP          SFTP                    `yaml:"sftp"`
}

type SFTP struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	PrivateKeyFile string `yaml:"private_key_file"`
	RemoteRoot     string `yaml:"remote_root"`
}

type MinIO struct {
	URL             string `yaml:"url"`
	AccessID        string `yaml:"access_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Secure          bool   `yaml:"secure"`
	Bucket          string `yaml:"bucket"`
}

type Assets struct {
	Template    string `yaml:"template"`
	Disclaimer  string `yaml:"disclaimer"`
	FontBold    string `yaml:"font_bold"`
	FontRegular string `yaml:"font_regular"`
}

type FFmpeg struct {
	FFmpegBinary  string `yaml:"ffmpeg_binary"`
	FFprobeBinary string `yaml:"ffprobe_binary"`
	Preset        string `yaml:"preset"`
}

type Worker struct {
	TempDir            string `yaml:"temp_dir"`
	FailureJournalPath string `yaml:"failure_journal_path"`
}

type Limits struct {
	MaxSizeBytes       int64   `yaml:"max_size_bytes"`
	MaxDurationSeconds float64 `yaml:"max_duration_seconds"`
	AspectTolerance    float64 `yaml:"aspect_tolerance"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.workers", 2)

	v.SetDefault("rabbitmq_port", 5672)
	v.SetDefault("rabbitmq_kind", "topic")
	v.SetDefault("rabbitmq_exchange", "video_exchange")
	v.SetDefault("rabbitmq_queue", "process_video_queue")
	v.SetDefault("rabbitmq_routing_key", constant.TopicProcessVideo)
	v.SetDefault("rabbitmq_dlx", "video_exchange_dlx")
	v.SetDefault("rabbitmq_dlq", "process_video_queue_dlq")
	v.SetDefault("rabbitmq_dlq_routing_key", "dlq."+constant.TopicProcessVideo)

	v.SetDefault("storage.backend", string(constant.StorageBackendMinIO))
	v.SetDefault("storage.key_prefix", "processed")
	v.SetDefault("storage.local_root", "uploads")
	v.SetDefault("storage.sftp.port", 22)

	v.SetDefault("assets.template", "templates/overlay.png")
	v.SetDefault("assets.disclaimer", "templates/disclaimer.jpeg")
	v.SetDefault("assets.font_bold", "templates/font/Poppins-Bold.ttf")
	v.SetDefault("assets.font_regular", "templates/font/Poppins-Regular.ttf")

	v.SetDefault("ffmpeg.ffmpeg_binary", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_binary", "ffprobe")
	v.SetDefault("ffmpeg.preset", "fast")

	v.SetDefault("worker.temp_dir", "temp")
	v.SetDefault("worker.failure_journal_path", "data/failures")

	v.SetDefault("limits.max_size_bytes", 100*1024*1024)
	v.SetDefault("limits.max_duration_seconds", 60)
	v.SetDefault("limits.aspect_tolerance", 0.01)
}

// Load reads config.yaml from path. Every key can be overridden from the
// environment with dots replaced by underscores (STORAGE_BACKEND=s3).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{
		App: App{
			Environment: v.GetString("app.environment"),
			Host:        v.GetString("app.host"),
			Protocol:    v.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: v.GetString("server.port"),
			Workers:  v.GetInt("server.workers"),
		},
		Queue: RabbitMQ{
			Host:          v.GetString("rabbitmq_host"),
			Port:          v.GetInt("rabbitmq_port"),
			User:          v.GetString("rabbitmq_user"),
			Pass:          v.GetString("rabbitmq_pass"),
			Kind:          v.GetString("rabbitmq_kind"),
			ExchangeName:  v.GetString("rabbitmq_exchange"),
			QueueName:     v.GetString("rabbitmq_queue"),
			RoutingKey:    v.GetString("rabbitmq_routing_key"),
			DLXName:       v.GetString("rabbitmq_dlx"),
			DLQName:       v.GetString("rabbitmq_dlq"),
			DLQRoutingKey: v.GetString("rabbitmq_dlq_routing_key"),
		},
		PostgresDSN: v.GetString("postgresql_host"),
		Storage: Storage{
			Backend:       constant.StorageBackend(strings.ToLower(v.GetString("storage.backend"))),
			Bucket:        v.GetString("storage.bucket"),
			KeyPrefix:     v.GetString("storage.key_prefix"),
			PublicBaseURL: v.GetString("storage.public_base_url"),
			Region:        v.GetString("storage.region"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			Endpoint:      v.GetString("storage.endpoint"),
			GCSCredsFile:  v.GetString("storage.gcs_credentials_file"),
			LocalRoot:     v.GetString("storage.local_root"),
			SFTP: SFTP{
				Host:           v.GetString("storage.sftp.host"),
				Port:           v.GetInt("storage.sftp.port"),
				User:           v.GetString("storage.sftp.user"),
				Password:       v.GetString("storage.sftp.password"),
				PrivateKeyFile: v.GetString("storage.sftp.private_key_file"),
				RemoteRoot:     v.GetString("storage.sftp.remote_root"),
			},
		},
		MinIO: MinIO{
			URL:             v.GetString("minio.url"),
			AccessID:        v.GetString("minio.access_id"),
			SecretAccessKey: v.GetString("minio.secret_access_key"),
			Secure:          v.GetBool("minio.secure"),
			Bucket:          v.GetString("minio.bucket"),
		},
		Assets: Assets{
			Template:    v.GetString("assets.template"),
			Disclaimer:  v.GetString("assets.disclaimer"),
			FontBold:    v.GetString("assets.font_bold"),
			FontRegular: v.GetString("assets.font_regular"),
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  v.GetString("ffmpeg.ffmpeg_binary"),
			FFprobeBinary: v.GetString("ffmpeg.ffprobe_binary"),
			Preset:        v.GetString("ffmpeg.preset"),
		},
		Worker: Worker{
			TempDir:            v.GetString("worker.temp_dir"),
			FailureJournalPath: v.GetString("worker.failure_journal_path"),
		},
		Limits: Limits{
			MaxSizeBytes:       v.GetInt64("limits.max_size_bytes"),
			MaxDurationSeconds: v.GetFloat64("limits.max_duration_seconds"),
			AspectTolerance:    v.GetFloat64("limits.aspect_tolerance"),
		},
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = cfg.MinIO.Bucket
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case constant.StorageBackendMinIO:
		if c.MinIO.URL == "" {
			return fmt.Errorf("config: minio.url is required for backend %q", c.Storage.Backend)
		}
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: storage.bucket is required for backend %q", c.Storage.Backend)
		}
	case constant.StorageBackendS3, constant.StorageBackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: storage.bucket is required for backend %q", c.Storage.Backend)
		}
	case constant.StorageBackendSFTP:
		if c.Storage.SFTP.Host == "" || c.Storage.SFTP.User == "" {
			return fmt.Errorf("config: storage.sftp.host and storage.sftp.user are required")
		}
	case constant.StorageBackendLocal:
		if c.Storage.LocalRoot == "" {
			return fmt.Errorf("config: storage.local_root is required")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Limits.MaxSizeBytes <= 0 || c.Limits.MaxDurationSeconds <= 0 || c.Limits.AspectTolerance < 0 {
		return fmt.Errorf("config: limits must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == constant.EnvironmentProduction.String()
}
