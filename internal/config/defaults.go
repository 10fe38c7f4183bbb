package config

const (
	defaultBackendBaseURL        = "http://127.0.0.1:8000/api"
	defaultBackendRequestTimeout = 30
	defaultLogDir                = "~/.local/share/slidecast/logs"
	defaultStateDir              = "~/.local/share/slidecast/state"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultAudioPollInterval     = 2
	defaultRenderPollInterval    = 2
	defaultErrorRetryInterval    = 10
	defaultAutosaveDelayMS       = 750
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			RequestTimeout: defaultBackendRequestTimeout,
		},
		Workflow: Workflow{
			AudioPollInterval:  defaultAudioPollInterval,
			RenderPollInterval: defaultRenderPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			AutosaveDelayMS:    defaultAutosaveDelayMS,
		},
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
