package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose bool          `mapstructure:"verbose"`
	Config  string        `mapstructure:"config"`
	Project ProjectConfig `mapstructure:"project" validate:"required"`
	Data    DataConfig    `mapstructure:"data" validate:"required"`
	Server  ServerConfig  `mapstructure:"server"`
}

// ProjectConfig holds project-related settings
type ProjectConfig struct {
	RootDir  string `mapstructure:"rootDir" validate:"required"`
	TasksDir string `mapstructure:"tasksDir" validate:"required"`
}

// DataConfig holds data storage configuration
type DataConfig struct {
	File string `mapstructure:"file" validate:"required"`
	// Format of the collection document: json (default), yaml, or toml.
	Format string `mapstructure:"format" validate:"required,oneof=json yaml toml"`
	// AttachmentsDir is where attachment binaries live, one directory per task.
	AttachmentsDir string `mapstructure:"attachmentsDir" validate:"required"`
	// ArchiveDir is where archived task snapshots and their index live.
	ArchiveDir string `mapstructure:"archiveDir"`
}

// ServerConfig holds HTTP server settings for `taskdesk serve`.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	// WatchDataFile reloads the in-memory collection when an external writer
	// replaces the data file (e.g. a restore script).
	WatchDataFile bool `mapstructure:"watchDataFile"`
}
