package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/khaledhikmat/wildwatch-go/model"
)

// Settings is the full configuration tree. The hardcoded service serves
// DefaultSettings; the file service overlays a YAML file and the environment.
type Settings struct {
	ModeMaxShutdownTime          int    `yaml:"mode_max_shutdown_seconds" env:"MODE_MAX_SHUTDOWN_SECONDS"`
	DataFolder                   string `yaml:"data_folder" env:"DATA_FOLDER"`
	RecordingsFolder             string `yaml:"recordings_folder" env:"RECORDINGS_FOLDER"`
	MaxAgents                    int    `yaml:"max_agents" env:"MAX_AGENTS"`
	AgentHeartbeatPeriod         int    `yaml:"agent_heartbeat_seconds" env:"AGENT_HEARTBEAT_SECONDS"`
	AgentsManagerPeriodicTimeout int    `yaml:"agents_manager_periodic_seconds" env:"AGENTS_MANAGER_PERIODIC_SECONDS"`
	StreamerMaxWorkers           int    `yaml:"streamer_max_workers" env:"STREAMER_MAX_WORKERS"`
	AlertQueueSize               int    `yaml:"alert_queue_size" env:"ALERT_QUEUE_SIZE"`
	FrameSkip                    int    `yaml:"frame_skip" env:"FRAME_SKIP"`
	MetricsAddress               string `yaml:"metrics_address" env:"METRICS_ADDRESS"`

	Logging   LogParameters                 `yaml:"logging"`
	Cameras   []model.Camera                `yaml:"cameras"`
	Streamers map[string]StreamerParameters `yaml:"streamers"`
	Detection DetectionParameters           `yaml:"detection"`
	Alerts    AlertParameters               `yaml:"alerts"`
	Contacts  Contacts                      `yaml:"contacts"`
	Twilio    TwilioParameters              `yaml:"twilio"`
	SMTP      SMTPParameters                `yaml:"smtp"`
	Sound     SoundParameters               `yaml:"sound"`
	Database  DatabaseParameters            `yaml:"database"`
	Storage   StorageParameters             `yaml:"storage"`
	Kafka     KafkaParameters               `yaml:"kafka"`
}

func DefaultSettings() Settings {
	return Settings{
		ModeMaxShutdownTime:          5,
		DataFolder:                   "./settings",
		RecordingsFolder:             "./recordings",
		MaxAgents:                    4,
		AgentHeartbeatPeriod:         30,
		AgentsManagerPeriodicTimeout: 30,
		StreamerMaxWorkers:           1,
		AlertQueueSize:               100,
		FrameSkip:                    3,
		MetricsAddress:               ":9090",
		Logging: LogParameters{
			Level: "info",
		},
		Streamers: map[string]StreamerParameters{
			DetectorStreamerName: {
				ModelPath:                 "./models/yolov5s.onnx",
				LabelsPath:                "./models/coco.names",
				InputSize:                 640,
				ObjectConfidenceThreshold: 0.25,
				NMSThreshold:              0.45,
				AuditLog:                  "detections.log",
			},
			RecorderStreamerName: {
				ClipDuration: 10,
				ClipFPS:      10,
			},
		},
		Detection: DetectionParameters{
			ConfidenceThreshold:  0.5,
			MinDistanceAlert:     50,
			AlertCooldownSeconds: 60,
			HighDangerSpecies:    []string{"tiger", "lion", "leopard", "bear", "wolf", "hyena", "crocodile", "elephant", "rhino", "buffalo"},
			MediumRiskSpecies:    []string{"deer", "wild boar", "monkey", "fox", "jackal", "wild dog"},
			HumanLabels:          []string{"person", "human"},
			FocalLengthPx:        700,
			CategoryHeightsCM: map[string]float64{
				"person":   170,
				"elephant": 300,
				"bear":     150,
				"buffalo":  160,
				"deer":     100,
				"rabbit":   20,
			},
			TierHeightsCM: map[string]float64{
				string(model.TierHuman):  170,
				string(model.TierHigh):   100,
				string(model.TierMedium): 60,
				string(model.TierLow):    30,
			},
		},
		Alerts: AlertParameters{
			SMSEnabled:            true,
			EmailEnabled:          true,
			SoundEnabled:          true,
			ChannelTimeoutSeconds: 10,
		},
		Twilio: TwilioParameters{
			RatePerSecond: 1,
		},
		SMTP: SMTPParameters{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Sound: SoundParameters{
			Player: []string{"mpg123", "-q"},
			Files: map[string]string{
				"deterrent":  "audio/Divert.mp3",
				"proximity":  "audio/CCTV.mp3",
				"warning":    "audio/CCTV.mp3",
				"monitoring": "audio/monitored.mp3",
			},
		},
		Database: DatabaseParameters{
			Driver: "sqlite",
			DSN:    "./settings/wildwatch.db",
		},
		Storage: StorageParameters{
			Provider: "fake",
			Bucket:   "wildwatch",
		},
		Kafka: KafkaParameters{
			Topic: "wildwatch-alerts",
		},
	}
}

// normalize lower-cases and de-duplicates label lists and fills zero values
// with defaults so a partial file still yields a usable configuration.
func (s *Settings) normalize() {
	def := DefaultSettings()

	s.Detection.HighDangerSpecies = normalizeLabels(s.Detection.HighDangerSpecies)
	s.Detection.MediumRiskSpecies = normalizeLabels(s.Detection.MediumRiskSpecies)
	s.Detection.HumanLabels = normalizeLabels(s.Detection.HumanLabels)
	if len(s.Detection.HumanLabels) == 0 {
		s.Detection.HumanLabels = def.Detection.HumanLabels
	}
	if s.Detection.FocalLengthPx <= 0 {
		s.Detection.FocalLengthPx = def.Detection.FocalLengthPx
	}
	if s.Detection.AlertCooldownSeconds < 0 {
		s.Detection.AlertCooldownSeconds = def.Detection.AlertCooldownSeconds
	}
	if s.Alerts.ChannelTimeoutSeconds <= 0 {
		s.Alerts.ChannelTimeoutSeconds = def.Alerts.ChannelTimeoutSeconds
	}
	if s.AlertQueueSize <= 0 {
		s.AlertQueueSize = def.AlertQueueSize
	}
	if s.StreamerMaxWorkers <= 0 {
		s.StreamerMaxWorkers = 1
	}
	if s.AgentHeartbeatPeriod <= 0 {
		s.AgentHeartbeatPeriod = def.AgentHeartbeatPeriod
	}
	if s.AgentsManagerPeriodicTimeout <= 0 {
		s.AgentsManagerPeriodicTimeout = def.AgentsManagerPeriodicTimeout
	}
	if s.MaxAgents <= 0 {
		s.MaxAgents = def.MaxAgents
	}
	if s.Streamers == nil {
		s.Streamers = def.Streamers
	}

	s.Contacts.FarmerNumbers = normalizeContacts(s.Contacts.FarmerNumbers)
	s.Contacts.FarmerEmails = normalizeContacts(s.Contacts.FarmerEmails)
	s.Contacts.AuthorityNumbers = normalizeContacts(s.Contacts.AuthorityNumbers)
	s.Contacts.AuthorityEmails = normalizeContacts(s.Contacts.AuthorityEmails)
	s.Contacts.SecurityNumbers = normalizeContacts(s.Contacts.SecurityNumbers)
	s.Contacts.SecurityEmails = normalizeContacts(s.Contacts.SecurityEmails)
}

func (s *Settings) validate() error {
	if s.Detection.ConfidenceThreshold < 0 || s.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within [0, 1], got %v", s.Detection.ConfidenceThreshold)
	}
	if s.Detection.MinDistanceAlert < 0 {
		return fmt.Errorf("min_distance_alert must not be negative, got %v", s.Detection.MinDistanceAlert)
	}
	for tier, secs := range s.Detection.TierCooldownSeconds {
		if _, ok := model.LookupTier(tier); !ok {
			return fmt.Errorf("tier_cooldown_seconds: unknown tier %q (want high, medium, low or human)", tier)
		}
		if secs < 0 {
			return fmt.Errorf("tier_cooldown_seconds[%s] must not be negative", tier)
		}
	}

	for tier := range s.Detection.TierHeightsCM {
		if _, ok := model.LookupTier(tier); !ok {
			return fmt.Errorf("tier_heights_cm: unknown tier %q (want high, medium, low or human)", tier)
		}
	}

	ids := lo.Map(s.Cameras, func(c model.Camera, _ int) string { return c.ID })
	if dups := lo.FindDuplicates(ids); len(dups) > 0 {
		return fmt.Errorf("duplicate camera ids: %v", dups)
	}
	return nil
}

func normalizeLabels(labels []string) []string {
	cleaned := lo.Map(labels, func(l string, _ int) string {
		return strings.ToLower(strings.TrimSpace(l))
	})
	return lo.Uniq(lo.Compact(cleaned))
}

func normalizeContacts(contacts []string) []string {
	cleaned := lo.Map(contacts, func(c string, _ int) string {
		return strings.TrimSpace(c)
	})
	return lo.Uniq(lo.Compact(cleaned))
}

type settingsService struct {
	settings Settings
}

func (svc *settingsService) GetModeMaxShutdownTime() int {
	return svc.settings.ModeMaxShutdownTime
}

func (svc *settingsService) GetDataFolder() string {
	return svc.settings.DataFolder
}

func (svc *settingsService) GetCamerasInputFile() string {
	return filepath.Join(svc.GetDataFolder(), "cameras.json")
}

func (svc *settingsService) GetRecordingsFolder() string {
	return svc.settings.RecordingsFolder
}

func (svc *settingsService) GetMaxAgents() int {
	return svc.settings.MaxAgents
}

func (svc *settingsService) GetAgentHeartbeatPeriod() int {
	return svc.settings.AgentHeartbeatPeriod
}

func (svc *settingsService) GetAgentsManagerPeriodicTimeout() int {
	return svc.settings.AgentsManagerPeriodicTimeout
}

func (svc *settingsService) GetStreamerMaxWorkers() int {
	return svc.settings.StreamerMaxWorkers
}

func (svc *settingsService) GetAlertQueueSize() int {
	return svc.settings.AlertQueueSize
}

func (svc *settingsService) GetFrameSkip() int {
	return svc.settings.FrameSkip
}

func (svc *settingsService) GetMetricsAddress() string {
	return svc.settings.MetricsAddress
}

func (svc *settingsService) GetLogging() LogParameters {
	return svc.settings.Logging
}

func (svc *settingsService) GetCameras() []model.Camera {
	return append([]model.Camera(nil), svc.settings.Cameras...)
}

func (svc *settingsService) GetStreamerParameters(name string) StreamerParameters {
	return svc.settings.Streamers[name]
}

func (svc *settingsService) GetDetectionParameters() DetectionParameters {
	return svc.settings.Detection
}

func (svc *settingsService) GetAlertParameters() AlertParameters {
	return svc.settings.Alerts
}

func (svc *settingsService) GetContacts() Contacts {
	return svc.settings.Contacts
}

func (svc *settingsService) GetTwilio() TwilioParameters {
	return svc.settings.Twilio
}

func (svc *settingsService) GetSMTP() SMTPParameters {
	return svc.settings.SMTP
}

func (svc *settingsService) GetSound() SoundParameters {
	return svc.settings.Sound
}

func (svc *settingsService) GetDatabase() DatabaseParameters {
	return svc.settings.Database
}

func (svc *settingsService) GetStorage() StorageParameters {
	return svc.settings.Storage
}

func (svc *settingsService) GetKafka() KafkaParameters {
	return svc.settings.Kafka
}
