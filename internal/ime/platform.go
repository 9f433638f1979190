package ime

// Platform installs and activates the input method on a desktop.
type Platform interface {
	// Name returns the platform name (e.g., "linux").
	Name() string

	// Available returns true if an input method framework was found.
	Available() bool

	// Install registers the input method for the current user.
	Install() error

	// Uninstall removes the registration.
	Uninstall() error

	// IsInstalled returns true if the input method is registered.
	IsInstalled() bool

	// IsActive returns true if the input method is currently selected.
	IsActive() bool

	// Activate makes this input method the active one.
	Activate() error
}

// PlatformConfig contains platform-specific configuration.
type PlatformConfig struct {
	// HomeDir overrides the user's home directory.
	HomeDir string

	// EnginePath is the engine binary the framework launches.
	EnginePath string

	// DisplayName is shown to users in system settings.
	DisplayName string

	// Version is written into the component description.
	Version string
}

// DefaultPlatformConfig returns platform-appropriate default configuration.
func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		DisplayName: "Vietnamese (vnime)",
		Version:     "1.0",
	}
}
