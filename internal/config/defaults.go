package config

const (
	defaultConfigPath           = "~/.config/docdesk/config.toml"
	defaultRoot                 = "~/.local/share/docdesk"
	defaultSourceDir            = "~/scans"
	defaultUser                 = "system"
	defaultBind                 = "127.0.0.1:7489"
	defaultPollIntervalMillis   = 3000
	defaultStabilityDelayMillis = 300
	defaultMaxUploadMB          = 25
	defaultClassifierAPIBase    = "http://localhost:8080/api/v1"
	defaultClassifierTimeout    = 60
	defaultCorrelationID        = CorrelationUUID
	defaultPolicy               = "min"
	defaultThreshold            = 0.7
	defaultBackend              = BackendFile
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Correlation id derivation modes.
const (
	CorrelationUUID = "uuid"
	CorrelationStem = "stem"
)

// Meta store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Root:      defaultRoot,
			SourceDir: defaultSourceDir,
		},
		App: App{
			User: defaultUser,
		},
		Server: Server{
			Bind: defaultBind,
		},
		Ingest: Ingest{
			PollIntervalMillis:   defaultPollIntervalMillis,
			StabilityDelayMillis: defaultStabilityDelayMillis,
			MaxUploadMB:          defaultMaxUploadMB,
		},
		Classifier: Classifier{
			APIBase:        defaultClassifierAPIBase,
			TimeoutSeconds: defaultClassifierTimeout,
			CorrelationID:  defaultCorrelationID,
		},
		Routing: Routing{
			Policy:    defaultPolicy,
			Threshold: defaultThreshold,
		},
		Storage: Storage{
			Backend: defaultBackend,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
