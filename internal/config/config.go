package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/video2comic/internal/comic"
)

// EnvPrefix is prepended to every environment override, e.g. VIDEO2COMIC_SCENE_THRESHOLD.
const EnvPrefix = "VIDEO2COMIC_"

type Config struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
	Workers   int    `yaml:"workers" env:"WORKERS"` // 0 = sized from the host

	Sampler    SamplerConfig    `yaml:"sampler" envPrefix:"SAMPLER_"`
	Scene      SceneConfig      `yaml:"scene" envPrefix:"SCENE_"`
	Stylizer   StylizerConfig   `yaml:"stylizer" envPrefix:"STYLIZER_"`
	Transcript TranscriptConfig `yaml:"transcript" envPrefix:"TRANSCRIPT_"`
	Layout     LayoutConfig     `yaml:"layout" envPrefix:"LAYOUT_"`
	Bubble     BubbleConfig     `yaml:"bubble" envPrefix:"BUBBLE_"`
	Pipeline   PipelineConfig   `yaml:"pipeline" envPrefix:"PIPELINE_"`
	Export     ExportConfig     `yaml:"export" envPrefix:"EXPORT_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Jobs       JobsConfig       `yaml:"jobs" envPrefix:"JOBS_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
}

type SamplerConfig struct {
	ProbeFPS float64 `yaml:"probe_fps" env:"PROBE_FPS"`
	Width    int     `yaml:"width" env:"WIDTH"`
	Height   int     `yaml:"height" env:"HEIGHT"`
}

// Interval between probe points.
func (s SamplerConfig) Interval() time.Duration {
	if s.ProbeFPS <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / s.ProbeFPS)
}

type SceneConfig struct {
	Threshold         float64       `yaml:"threshold" env:"THRESHOLD"`
	DramaticThreshold float64       `yaml:"dramatic_threshold" env:"DRAMATIC_THRESHOLD"`
	MaxGap            time.Duration `yaml:"max_gap" env:"MAX_GAP"`
}

type StylizerConfig struct {
	Backend      string        `yaml:"backend" env:"BACKEND"` // filter, ffmpeg, remote, none
	Seed         int64         `yaml:"seed" env:"SEED"`
	Levels       int           `yaml:"levels" env:"LEVELS"`
	EdgeStrength float64       `yaml:"edge_strength" env:"EDGE_STRENGTH"`
	FFmpegFilter string        `yaml:"ffmpeg_filter" env:"FFMPEG_FILTER"`
	RemoteURL    string        `yaml:"remote_url" env:"REMOTE_URL"`
	RateInterval time.Duration `yaml:"rate_interval" env:"RATE_INTERVAL"`
	RateBurst    int           `yaml:"rate_burst" env:"RATE_BURST"`
	Retries      int           `yaml:"retries" env:"RETRIES"`
}

type TranscriptConfig struct {
	Backend       string `yaml:"backend" env:"BACKEND"` // none, subtitles, whisper
	SubtitlePath  string `yaml:"subtitle_path" env:"SUBTITLE_PATH"`
	WhisperBinary string `yaml:"whisper_binary" env:"WHISPER_BINARY"`
	WhisperModel  string `yaml:"whisper_model" env:"WHISPER_MODEL"`
}

type LayoutConfig struct {
	Template   string `yaml:"template" env:"TEMPLATE"`
	PageWidth  int    `yaml:"page_width" env:"PAGE_WIDTH"`
	PageHeight int    `yaml:"page_height" env:"PAGE_HEIGHT"`
	Gutter     int    `yaml:"gutter" env:"GUTTER"`
}

type BubbleConfig struct {
	MaxAreaFraction float64 `yaml:"max_area_fraction" env:"MAX_AREA_FRACTION"`
	Tolerance       float64 `yaml:"tolerance" env:"TOLERANCE"`
	Margin          int     `yaml:"margin" env:"MARGIN"`
	Spacing         int     `yaml:"spacing" env:"SPACING"`
	MaxChars        int     `yaml:"max_chars" env:"MAX_CHARS"`
	Detector        string  `yaml:"detector" env:"DETECTOR"` // contrast, center, none
}

type PipelineConfig struct {
	SegmentTimeout time.Duration `yaml:"segment_timeout" env:"SEGMENT_TIMEOUT"`
	BarrierTimeout time.Duration `yaml:"barrier_timeout" env:"BARRIER_TIMEOUT"`
}

type ExportConfig struct {
	PDF          bool   `yaml:"pdf" env:"PDF"`
	Zip          bool   `yaml:"zip" env:"ZIP"`
	Previews     bool   `yaml:"previews" env:"PREVIEWS"`
	PreviewDPI   int    `yaml:"preview_dpi" env:"PREVIEW_DPI"`
	PreviewWidth int    `yaml:"preview_width" env:"PREVIEW_WIDTH"`
	ShareBaseURL string `yaml:"share_base_url" env:"SHARE_BASE_URL"`
}

type StorageConfig struct {
	Backend   string      `yaml:"backend" env:"BACKEND"` // local, minio
	OutputDir string      `yaml:"output_dir" env:"OUTPUT_DIR"`
	MinIO     MinIOConfig `yaml:"minio" envPrefix:"MINIO_"`
}

type MinIOConfig struct {
	Endpoint     string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey    string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL       bool   `yaml:"use_ssl" env:"USE_SSL"`
	UploadBucket string `yaml:"upload_bucket" env:"UPLOAD_BUCKET"`
	OutputBucket string `yaml:"output_bucket" env:"OUTPUT_BUCKET"`
}

type JobsConfig struct {
	Retention time.Duration `yaml:"retention" env:"RETENTION"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",
		Sampler: SamplerConfig{
			ProbeFPS: 1,
			Width:    640,
			Height:   360,
		},
		Scene: SceneConfig{
			Threshold:         0.30,
			DramaticThreshold: 0.65,
			MaxGap:            10 * time.Second,
		},
		Stylizer: StylizerConfig{
			Backend:      "filter",
			Seed:         1,
			Levels:       5,
			EdgeStrength: 0.6,
			RateBurst:    2,
			Retries:      1,
		},
		Transcript: TranscriptConfig{
			Backend:       "none",
			WhisperBinary: "whisper",
			WhisperModel:  "tiny",
		},
		Layout: LayoutConfig{
			Template:   string(comic.TemplateGrid2x2),
			PageWidth:  1240,
			PageHeight: 1754,
			Gutter:     20,
		},
		Bubble: BubbleConfig{
			MaxAreaFraction: 0.40,
			Tolerance:       0.01,
			Margin:          12,
			Spacing:         8,
			MaxChars:        100,
			Detector:        "contrast",
		},
		Pipeline: PipelineConfig{
			SegmentTimeout: 2 * time.Minute,
			BarrierTimeout: 10 * time.Minute,
		},
		Export: ExportConfig{
			PDF:          true,
			Zip:          true,
			PreviewDPI:   36,
			PreviewWidth: 320,
		},
		Storage: StorageConfig{
			Backend:   "local",
			OutputDir: "output",
			MinIO: MinIOConfig{
				UploadBucket: "uploads",
				OutputBucket: "comics",
			},
		},
		Jobs: JobsConfig{
			Retention: time.Hour,
		},
	}
}

// Load applies, in order: defaults, the YAML file at path (optional) and
// VIDEO2COMIC_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise surface deep inside the pipeline.
func (c Config) Validate() error {
	var errs []error

	if c.Sampler.ProbeFPS <= 0 {
		errs = append(errs, fmt.Errorf("sampler.probe_fps must be positive, got %v", c.Sampler.ProbeFPS))
	}
	if c.Sampler.Width <= 0 || c.Sampler.Height <= 0 {
		errs = append(errs, fmt.Errorf("sampler frame size must be positive, got %dx%d", c.Sampler.Width, c.Sampler.Height))
	}
	if c.Scene.Threshold < 0 || c.Scene.Threshold > 1 {
		errs = append(errs, fmt.Errorf("scene.threshold must be within [0,1], got %v", c.Scene.Threshold))
	}
	if c.Scene.MaxGap <= 0 {
		errs = append(errs, fmt.Errorf("scene.max_gap must be positive, got %v", c.Scene.MaxGap))
	}
	switch comic.LayoutTemplate(c.Layout.Template) {
	case comic.TemplateGrid2x2, comic.TemplateGrid3x1, comic.TemplateSplash:
	default:
		errs = append(errs, fmt.Errorf("layout.template %q is not one of grid-2x2, grid-3x1, splash", c.Layout.Template))
	}
	if c.Layout.Gutter < 0 {
		errs = append(errs, fmt.Errorf("layout.gutter must not be negative, got %d", c.Layout.Gutter))
	}
	if c.Layout.PageWidth <= 4*c.Layout.Gutter || c.Layout.PageHeight <= 4*c.Layout.Gutter {
		errs = append(errs, fmt.Errorf("layout page %dx%d too small for gutter %d", c.Layout.PageWidth, c.Layout.PageHeight, c.Layout.Gutter))
	}
	if c.Bubble.MaxAreaFraction <= 0 || c.Bubble.MaxAreaFraction > 1 {
		errs = append(errs, fmt.Errorf("bubble.max_area_fraction must be within (0,1], got %v", c.Bubble.MaxAreaFraction))
	}
	if c.Bubble.Tolerance < 0 || c.Bubble.Tolerance > 1 {
		errs = append(errs, fmt.Errorf("bubble.tolerance must be within [0,1], got %v", c.Bubble.Tolerance))
	}
	switch c.Bubble.Detector {
	case "contrast", "center", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown bubble.detector %q", c.Bubble.Detector))
	}
	switch c.Stylizer.Backend {
	case "filter", "ffmpeg", "none":
	case "remote":
		if c.Stylizer.RemoteURL == "" {
			errs = append(errs, errors.New("stylizer.remote_url is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown stylizer backend %q", c.Stylizer.Backend))
	}
	switch c.Transcript.Backend {
	case "none":
	case "subtitles":
		if c.Transcript.SubtitlePath == "" {
			errs = append(errs, errors.New("transcript.subtitle_path is required for the subtitles backend"))
		}
	case "whisper":
		if c.Transcript.WhisperBinary == "" {
			errs = append(errs, errors.New("transcript.whisper_binary is required for the whisper backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transcript backend %q", c.Transcript.Backend))
	}
	switch c.Storage.Backend {
	case "local", "minio":
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Pipeline.SegmentTimeout <= 0 || c.Pipeline.BarrierTimeout <= 0 {
		errs = append(errs, errors.New("pipeline timeouts must be positive"))
	}

	return errors.Join(errs...)
}
