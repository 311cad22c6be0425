package types

import "time"

// RetryConfig controls transient-failure retry behaviour for outbound
// HTTP requests.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first
	// (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// WaitMultiplier scales the exponential backoff (default 1).
	WaitMultiplier float64 `json:"wait_multiplier" yaml:"wait_multiplier"`

	// WaitMin clamps the minimum wait between attempts (default 2s).
	WaitMin time.Duration `json:"wait_min" yaml:"wait_min"`

	// WaitMax clamps the maximum wait between attempts (default 10s).
	WaitMax time.Duration `json:"wait_max" yaml:"wait_max"`
}

// DefaultRetryConfig returns the stock retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		WaitMultiplier: 1,
		WaitMin:        2 * time.Second,
		WaitMax:        10 * time.Second,
	}
}

// MineruConfig holds settings for the MinerU OCR service client and the
// batch conversion pipeline built on it.
type MineruConfig struct {
	// BaseURL is the API root (e.g. "https://mineru.net/api/v4").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIToken is the bearer credential sent with API calls. Pre-signed
	// upload and result URLs are accessed without it.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty"`

	// EnableFormula turns on formula recognition in the remote service.
	EnableFormula bool `json:"enable_formula" yaml:"enable_formula"`

	// EnableTable turns on table recognition in the remote service.
	EnableTable bool `json:"enable_table" yaml:"enable_table"`

	// LayoutModel selects the remote layout-recognition model.
	LayoutModel string `json:"layout_model" yaml:"layout_model"`

	// Language is the document language hint (e.g. "ch").
	Language string `json:"language" yaml:"language"`

	// SupportedFormats lists the file extensions accepted for upload.
	SupportedFormats []string `json:"supported_formats" yaml:"supported_formats"`

	// RequestTimeout bounds ordinary API requests (default 30s).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// PollMaxWait bounds the total wait for batch completion (default 5m).
	PollMaxWait time.Duration `json:"poll_max_wait" yaml:"poll_max_wait"`

	// PollInterval is the sleep between status queries (default 3s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// ZipDownloadTimeout bounds result archive downloads (default 2m).
	ZipDownloadTimeout time.Duration `json:"zip_download_timeout" yaml:"zip_download_timeout"`

	// MaxConcurrentUploads caps the upload worker pool (default 5).
	MaxConcurrentUploads int `json:"max_concurrent_uploads" yaml:"max_concurrent_uploads"`

	// Retry controls transient-failure retries for API calls.
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// DefaultMineruConfig returns the stock MinerU settings. The API token is
// left empty; the caller supplies it from the environment.
func DefaultMineruConfig() MineruConfig {
	return MineruConfig{
		BaseURL:              "https://mineru.net/api/v4",
		EnableFormula:        true,
		EnableTable:          true,
		LayoutModel:          "doclayout_yolo",
		Language:             "ch",
		SupportedFormats:     []string{".jpg", ".jpeg", ".png", ".webp", ".pdf"},
		RequestTimeout:       30 * time.Second,
		PollMaxWait:          300 * time.Second,
		PollInterval:         3 * time.Second,
		ZipDownloadTimeout:   120 * time.Second,
		MaxConcurrentUploads: 5,
		Retry:                DefaultRetryConfig(),
	}
}

// FetchConfig holds settings for the article-download stage.
type FetchConfig struct {
	// OutputDir is the base directory for fetched articles (default "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// UserAgent is the browser User-Agent sent with page and image requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// RequestTimeout bounds page and image requests (default 30s).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// DownloadDelay is the politeness delay between image downloads
	// (default 500ms).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// MaxTitleLength caps the sanitized article title used as a directory
	// name (default 50).
	MaxTitleLength int `json:"max_title_length" yaml:"max_title_length"`

	// Retry controls transient-failure retries for downloads.
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// DefaultFetchConfig returns the stock fetch settings.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		OutputDir: "output",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/120.0.0.0 Safari/537.36",
		RequestTimeout: 30 * time.Second,
		DownloadDelay:  500 * time.Millisecond,
		MaxTitleLength: 50,
		Retry:          DefaultRetryConfig(),
	}
}

// WebConfig holds settings for the web front-end.
type WebConfig struct {
	// Host is the listen address (default "0.0.0.0").
	Host string `json:"host" yaml:"host"`

	// Port is the listen port (default 8080).
	Port int `json:"port" yaml:"port"`

	// OutputDir is the base directory for conversion results.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// MaxHistoryItems bounds the conversion history (default 10).
	MaxHistoryItems int `json:"max_history_items" yaml:"max_history_items"`
}

// DefaultWebConfig returns the stock web front-end settings.
func DefaultWebConfig() WebConfig {
	return WebConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		OutputDir:       "output",
		MaxHistoryItems: 10,
	}
}

// WorkspaceConfig holds settings for temporary-workspace management.
type WorkspaceConfig struct {
	// BaseDir is the directory under which workspaces are created
	// (default: current working directory).
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// MaxAge is how long an orphaned workspace from a prior run may live
	// before the startup sweep removes it (default 24h).
	MaxAge time.Duration `json:"max_age" yaml:"max_age"`
}

// DefaultWorkspaceConfig returns the stock workspace settings.
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		BaseDir: ".",
		MaxAge:  24 * time.Hour,
	}
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Mineru    MineruConfig    `json:"mineru" yaml:"mineru"`
	Fetch     FetchConfig     `json:"fetch" yaml:"fetch"`
	Web       WebConfig       `json:"web" yaml:"web"`
	Workspace WorkspaceConfig `json:"workspace" yaml:"workspace"`
}

// DefaultPipelineConfig returns the stock configuration for every stage.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Mineru:    DefaultMineruConfig(),
		Fetch:     DefaultFetchConfig(),
		Web:       DefaultWebConfig(),
		Workspace: DefaultWorkspaceConfig(),
	}
}
