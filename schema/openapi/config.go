package openapi

// Option customises the generated document.
type Option func(*generatorConfig)

type generatorConfig struct {
	openAPIVersion string
	title          string
	version        string
	description    string
	component      string
}

func defaultConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.1.0",
		title:          "Datastore option settings",
		version:        "1.0.0",
		component:      "Settings",
	}
}

// WithOpenAPIVersion overrides the OpenAPI version, "3.1.0" by default.
func WithOpenAPIVersion(version string) Option {
	return func(cfg *generatorConfig) {
		if version != "" {
			cfg.openAPIVersion = version
		}
	}
}

// WithInfo sets the info block of the document.
func WithInfo(title, version, description string) Option {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.title = title
		}
		if version != "" {
			cfg.version = version
		}
		cfg.description = description
	}
}

// WithComponentName renames the root component, "Settings" by default.
func WithComponentName(name string) Option {
	return func(cfg *generatorConfig) {
		if name != "" {
			cfg.component = name
		}
	}
}
