package config

import "github.com/khaledhikmat/wildwatch-go/model"

const (
	DetectorStreamerName = "detector"
	RecorderStreamerName = "recorder"
)

type IService interface {
	GetModeMaxShutdownTime() int
	GetDataFolder() string
	GetCamerasInputFile() string
	GetRecordingsFolder() string
	GetMaxAgents() int
	GetAgentHeartbeatPeriod() int
	GetAgentsManagerPeriodicTimeout() int
	GetStreamerMaxWorkers() int
	GetAlertQueueSize() int
	GetFrameSkip() int
	GetMetricsAddress() string
	GetLogging() LogParameters
	GetCameras() []model.Camera
	GetStreamerParameters(name string) StreamerParameters
	GetDetectionParameters() DetectionParameters
	GetAlertParameters() AlertParameters
	GetContacts() Contacts
	GetTwilio() TwilioParameters
	GetSMTP() SMTPParameters
	GetSound() SoundParameters
	GetDatabase() DatabaseParameters
	GetStorage() StorageParameters
	GetKafka() KafkaParameters
}

type LogParameters struct {
	Level   string `yaml:"level" env:"LOG_LEVEL"`
	File    string `yaml:"file" env:"LOG_FILE"`
	NoColor bool   `yaml:"no_color" env:"LOG_NO_COLOR"`
}

type StreamerParameters struct {
	ClipDuration              int     `yaml:"clip_duration_seconds"`
	ClipFPS                   float64 `yaml:"clip_fps"`
	ModelPath                 string  `yaml:"model_path"`
	LabelsPath                string  `yaml:"labels_path"`
	InputSize                 int     `yaml:"input_size"`
	ObjectConfidenceThreshold float32 `yaml:"object_confidence_threshold"`
	NMSThreshold              float32 `yaml:"nms_threshold"`
	AuditLog                  string  `yaml:"audit_log"`
}

type DetectionParameters struct {
	ConfidenceThreshold      float64            `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	MinDistanceAlert         float64            `yaml:"min_distance_alert" env:"MIN_DISTANCE_ALERT"`
	AlertCooldownSeconds     int                `yaml:"alert_cooldown_seconds" env:"ALERT_COOLDOWN_SECONDS"`
	TierCooldownSeconds      map[string]int     `yaml:"tier_cooldown_seconds" env:"TIER_COOLDOWN_SECONDS"`
	ProximityCooldownSeconds int                `yaml:"proximity_cooldown_seconds" env:"PROXIMITY_COOLDOWN_SECONDS"`
	HighDangerSpecies        []string           `yaml:"high_danger_species" env:"HIGH_DANGER_SPECIES" envSeparator:","`
	MediumRiskSpecies        []string           `yaml:"medium_risk_species" env:"MEDIUM_RISK_SPECIES" envSeparator:","`
	HumanLabels              []string           `yaml:"human_labels" env:"HUMAN_LABELS" envSeparator:","`
	FocalLengthPx            float64            `yaml:"focal_length_px" env:"FOCAL_LENGTH_PX"`
	CategoryHeightsCM        map[string]float64 `yaml:"category_heights_cm"`
	TierHeightsCM            map[string]float64 `yaml:"tier_heights_cm"`
}

type AlertParameters struct {
	SMSEnabled            bool `yaml:"sms_enabled" env:"SMS_ENABLED"`
	EmailEnabled          bool `yaml:"email_enabled" env:"EMAIL_ENABLED"`
	SoundEnabled          bool `yaml:"sound_enabled" env:"SOUND_ENABLED"`
	NotifyLowTier         bool `yaml:"notify_low_tier" env:"NOTIFY_LOW_TIER"`
	ChannelTimeoutSeconds int  `yaml:"channel_timeout_seconds" env:"CHANNEL_TIMEOUT_SECONDS"`
}

type Contacts struct {
	FarmerNumbers    []string `yaml:"farmer_numbers" env:"FARMER_NUMBERS" envSeparator:","`
	FarmerEmails     []string `yaml:"farmer_emails" env:"FARMER_EMAILS" envSeparator:","`
	AuthorityNumbers []string `yaml:"authority_numbers" env:"AUTHORITY_NUMBERS" envSeparator:","`
	AuthorityEmails  []string `yaml:"authority_emails" env:"AUTHORITY_EMAILS" envSeparator:","`
	SecurityNumbers  []string `yaml:"security_numbers" env:"SECURITY_NUMBERS" envSeparator:","`
	SecurityEmails   []string `yaml:"security_emails" env:"SECURITY_EMAILS" envSeparator:","`
}

type TwilioParameters struct {
	AccountSID    string  `yaml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken     string  `yaml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	FromNumber    string  `yaml:"from_number" env:"TWILIO_NUMBER"`
	RatePerSecond float64 `yaml:"rate_per_second" env:"TWILIO_RATE_PER_SECOND"`
}

type SMTPParameters struct {
	Host     string `yaml:"host" env:"SMTP_SERVER"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"SENDER_EMAIL"`
	Password string `yaml:"password" env:"SENDER_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

type SoundParameters struct {
	Player []string          `yaml:"player" env:"SOUND_PLAYER" envSeparator:" "`
	Files  map[string]string `yaml:"files"`
}

type DatabaseParameters struct {
	Driver string `yaml:"driver" env:"DATABASE_DRIVER"` // files, sqlite or postgres
	DSN    string `yaml:"dsn" env:"DATABASE_DSN"`
}

type StorageParameters struct {
	Provider  string `yaml:"provider" env:"STORAGE_PROVIDER"` // fake or minio
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
	Secure    bool   `yaml:"secure" env:"MINIO_SECURE"`
}

type KafkaParameters struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_ALERTS_TOPIC"`
}
