package errors

// Template defines a registered error code.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

var registry = map[string]Template{
	// Configuration (D100-D119)
	"D100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
	"D101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
	},
	"D102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"D103": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations use Go syntax such as \"500ms\", \"5s\" or \"1m30s\".",
	},
	"D104": {
		Category: CategoryConfig,
		Message:  "Duplicate session name",
	},

	// Network (D120-D139)
	"D120": {
		Category: CategoryNetwork,
		Message:  "Cannot listen on address",
	},
	"D121": {
		Category: CategoryNetwork,
		Message:  "Server stopped unexpectedly",
	},

	// Storage (D140-D159)
	"D140": {
		Category: CategoryStorage,
		Message:  "Static root not found",
	},
	"D141": {
		Category: CategoryStorage,
		Message:  "Object storage unavailable",
	},

	// Command line (D160-D179)
	"D160": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
	},
}

// Codes returns all registered codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// Lookup returns the template for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
