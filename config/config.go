package config

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	DetectorSSD        = "ssd"
	DetectorRetinaFace = "retinaface"

	MetricCosine = "cosine"
)

const (
	defaultSessionDuration = 15 * time.Second
	defaultSampleInterval  = 300 * time.Millisecond
	defaultFrameWidth      = 640
	defaultFrameHeight     = 480
	defaultStatsCacheTTL   = 30 * time.Second
)

// ErrUnsupportedMetric is returned when the configured distance metric cannot be
// turned into a confidence with 1 - distance.
var ErrUnsupportedMetric = errors.New("unsupported distance metric")

type Config struct {
	// database
	DatabaseDriver   string
	DatabasePath     string // sqlite file
	DatabaseDSN      string // mysql dsn
	DatabaseLogLevel string

	// gallery of reference images, one per identity
	GalleryPath string

	// camera
	CameraIndex int
	FrameWidth  int
	FrameHeight int

	// session timing
	SessionDuration time.Duration
	SampleInterval  time.Duration

	// recognition
	DistanceMetric string
	Thresholds     map[string]float64 // per model name, overrides defaults

	// face detection model paths (DNN)
	Detector             string
	FaceDNNNetConfigPath string
	FaceDNNNetModelPath  string
	RetinaFaceModelPath  string

	// embedding models
	ArcFaceModelPath string
	FacenetModelPath string
	DlibModelsDir    string

	// outputs
	ReportDir     string
	HTTPAddr      string
	StatsCacheTTL time.Duration

	// optional mqtt publisher
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_PATH", "facial_recognition_data.db")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("GALLERY_PATH", "face_photos")
	v.SetDefault("CAMERA_INDEX", 0)
	v.SetDefault("FRAME_WIDTH", defaultFrameWidth)
	v.SetDefault("FRAME_HEIGHT", defaultFrameHeight)
	v.SetDefault("SESSION_DURATION", defaultSessionDuration.String())
	v.SetDefault("SAMPLE_INTERVAL", defaultSampleInterval.String())
	v.SetDefault("DISTANCE_METRIC", MetricCosine)
	v.SetDefault("DETECTOR", DetectorSSD)
	v.SetDefault("FACE_DNN_CONFIG_PATH", "./models/deploy.prototxt.txt")
	v.SetDefault("FACE_DNN_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel")
	v.SetDefault("RETINAFACE_MODEL_PATH", "./models/retinaface.onnx")
	v.SetDefault("ARCFACE_MODEL_PATH", "./models/arcface.onnx")
	v.SetDefault("FACENET_MODEL_PATH", "./models/facenet.onnx")
	v.SetDefault("DLIB_MODELS_DIR", "./models/dlib")
	v.SetDefault("REPORT_DIR", ".")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("STATS_CACHE_TTL", defaultStatsCacheTTL.String())
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_TOPIC", "facebench")
	v.SetDefault("MQTT_CLIENT_ID", "facebench")
}

func positiveIntOrDefault(v *viper.Viper, key string, defaultVal int) int {
	val := v.GetInt(key)
	if val <= 0 {
		if raw := v.GetString(key); raw != "" && raw != fmt.Sprint(defaultVal) {
			log.Printf("Warning: Invalid %s '%s'. Using default %d.", key, raw, defaultVal)
		}
		return defaultVal
	}
	return val
}

func durationOrDefault(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", key, raw, defaultVal, err)
		return defaultVal
	}
	return d
}

// LoadConfig reads configuration from defaults, an optional facebench.yaml in the
// working directory and the environment, in increasing order of precedence.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(viper.New(), ".")
}

// LoadConfigFrom is LoadConfig with an explicit viper instance and search directory.
func LoadConfigFrom(v *viper.Viper, dir string) (Config, error) {
	setDefaults(v)
	v.SetConfigName("facebench")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	gallery := v.GetString("GALLERY_PATH")
	absGallery, err := filepath.Abs(gallery)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for gallery '%s': %w", gallery, err)
	}

	metric := strings.ToLower(strings.TrimSpace(v.GetString("DISTANCE_METRIC")))
	if metric != MetricCosine {
		return Config{}, fmt.Errorf("%w: %q (confidence is derived as 1 - distance, which only holds for cosine)", ErrUnsupportedMetric, metric)
	}

	driver := strings.ToLower(v.GetString("DATABASE_DRIVER"))
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}
	if driver == DriverMySQL && v.GetString("DATABASE_DSN") == "" {
		return Config{}, errors.New("DATABASE_DSN is required when DATABASE_DRIVER=mysql")
	}

	detector := strings.ToLower(v.GetString("DETECTOR"))
	if detector != DetectorSSD && detector != DetectorRetinaFace {
		log.Printf("Warning: Unknown DETECTOR '%s'. Using %s.", detector, DetectorSSD)
		detector = DetectorSSD
	}

	thresholds, err := thresholdOverrides(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabaseDriver:       driver,
		DatabasePath:         v.GetString("DATABASE_PATH"),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		DatabaseLogLevel:     strings.ToLower(v.GetString("DB_LOG_LEVEL")),
		GalleryPath:          absGallery,
		CameraIndex:          v.GetInt("CAMERA_INDEX"),
		FrameWidth:           positiveIntOrDefault(v, "FRAME_WIDTH", defaultFrameWidth),
		FrameHeight:          positiveIntOrDefault(v, "FRAME_HEIGHT", defaultFrameHeight),
		SessionDuration:      durationOrDefault(v, "SESSION_DURATION", defaultSessionDuration),
		SampleInterval:       durationOrDefault(v, "SAMPLE_INTERVAL", defaultSampleInterval),
		DistanceMetric:       metric,
		Thresholds:           thresholds,
		Detector:             detector,
		FaceDNNNetConfigPath: v.GetString("FACE_DNN_CONFIG_PATH"),
		FaceDNNNetModelPath:  v.GetString("FACE_DNN_MODEL_PATH"),
		RetinaFaceModelPath:  v.GetString("RETINAFACE_MODEL_PATH"),
		ArcFaceModelPath:     v.GetString("ARCFACE_MODEL_PATH"),
		FacenetModelPath:     v.GetString("FACENET_MODEL_PATH"),
		DlibModelsDir:        v.GetString("DLIB_MODELS_DIR"),
		ReportDir:            v.GetString("REPORT_DIR"),
		HTTPAddr:             v.GetString("HTTP_ADDR"),
		StatsCacheTTL:        durationOrDefault(v, "STATS_CACHE_TTL", defaultStatsCacheTTL),
		MQTTBroker:           v.GetString("MQTT_BROKER"),
		MQTTTopic:            v.GetString("MQTT_TOPIC"),
		MQTTClientID:         v.GetString("MQTT_CLIENT_ID"),
	}

	return cfg, nil
}

// thresholdModels lists the model names whose threshold can be overridden through
// THRESHOLD_<NAME>. Validation against the model enumeration happens in recognition.
var thresholdModels = []string{"ArcFace", "Facenet", "Dlib"}

func thresholdOverrides(v *viper.Viper) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, name := range thresholdModels {
		key := "THRESHOLD_" + strings.ToUpper(name)
		// BindEnv so AutomaticEnv picks up keys without a default.
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
		if !v.IsSet(key) {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		out[name] = val
	}
	return out, nil
}
