package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "entity-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AnnotatorBackend identifies the named-entity annotation backend.
type AnnotatorBackend string

const (
	BackendHTTP      AnnotatorBackend = "http"
	BackendContainer AnnotatorBackend = "container"
)

// AnnotatorConfig holds settings for the annotation stage.
type AnnotatorConfig struct {
	HTTPConfig `yaml:",inline"`

	// Backend selects the annotator: http or container.
	Backend AnnotatorBackend `json:"backend" yaml:"backend"`

	// BaseURL is the NER service endpoint for the http backend.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates against the NER service, if it requires one.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Image is the container image for the container backend
	// (default "ner-service:latest").
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Model names the NER model the backend should load
	// (e.g. "en_core_web_lg").
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// BatchSize is the number of texts submitted per request (default 128).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Parallelism is the number of concurrent requests (default 4).
	Parallelism int `json:"parallelism" yaml:"parallelism"`

	// MaxRetries is the number of retry attempts for rate-limited or
	// overloaded responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RequestsPerSecond caps the outbound request rate. Zero means unlimited.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// CacheConfig holds settings for the persistent annotation cache.
type CacheConfig struct {
	// Path is the cache artifact location (default "cache/entities.cache.zst").
	// At most one pipeline writes to a given cache file at a time.
	Path string `json:"path" yaml:"path"`

	// CompressionLevel is the zstd level for the cache artifact. Zero uses
	// the codec default.
	CompressionLevel int `json:"compression_level" yaml:"compression_level"`
}

// SegmenterConfig holds settings for the filing flattening stage.
type SegmenterConfig struct {
	// InputDir contains parsed filing JSON files.
	InputDir string `json:"input_dir" yaml:"input_dir"`

	// BatchDir receives the shard JSONL files (default "batches").
	BatchDir string `json:"batch_dir" yaml:"batch_dir"`

	// BatchSize is the number of filings per shard file (default 1000).
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// EntityIndexConfig holds settings for the entity index stage.
type EntityIndexConfig struct {
	// IndexDir is the directory holding the SQLite database and exports
	// (default "index").
	IndexDir string `json:"index_dir" yaml:"index_dir"`

	// RecordsDir contains the per-shard document records to ingest
	// (default "records").
	RecordsDir string `json:"records_dir" yaml:"records_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Segmenter SegmenterConfig   `json:"segmenter" yaml:"segmenter"`
	Annotator AnnotatorConfig   `json:"annotator" yaml:"annotator"`
	Cache     CacheConfig       `json:"cache" yaml:"cache"`
	Index     EntityIndexConfig `json:"index" yaml:"index"`

	// BatchDir contains the shard JSONL files to annotate (default "batches").
	BatchDir string `json:"batch_dir" yaml:"batch_dir"`

	// RecordsDir receives the per-shard document records (default "records").
	RecordsDir string `json:"records_dir" yaml:"records_dir"`
}
