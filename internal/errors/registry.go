package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Error codes.
const (
	CodeConfigNotFound  = "B001"
	CodeConfigInvalid   = "B002"
	CodeConfigValue     = "B003"
	CodeTLSLoad         = "B010"
	CodeListen          = "B011"
	CodeStaticDir       = "B012"
	CodeDial            = "B020"
	CodeGaveUp          = "B021"
	CodeSchemaLoad      = "B030"
	CodeUnknownKey      = "B031"
	CodeStorage         = "B040"
	CodeMissingFlag     = "B050"
	CodeInvalidArgument = "B051"
	CodeCommand         = "B052"
)

var registry = map[string]Template{
	// Configuration (B001-B009)
	CodeConfigNotFound: {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "The configuration file passed with --config does not exist.",
		Suggestion: "Create beachbev.yaml or omit --config to run with defaults.",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The configuration file could not be parsed as YAML.",
	},
	CodeConfigValue: {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range or inconsistent with another value.",
	},

	// Static site (B010-B019)
	CodeTLSLoad: {
		Category:   CategorySite,
		Message:    "TLS certificate could not be loaded",
		Detail:     "The certificate or key file is missing or does not hold a matching PEM pair.",
		Suggestion: "Check site.cert_file and site.key_file.",
	},
	CodeListen: {
		Category:   CategorySite,
		Message:    "Could not listen on port",
		Detail:     "Another process may already be using the port, or binding it needs elevated privileges.",
		Suggestion: "Use --https-port and --http-port to pick free ports.",
	},
	CodeStaticDir: {
		Category:   CategorySite,
		Message:    "Static directory not found",
		Suggestion: "Point site.static_dir at the directory holding the public assets.",
	},

	// Packet connection (B020-B029)
	CodeDial: {
		Category:   CategoryTransport,
		Message:    "Packet server unreachable",
		Detail:     "The websocket handshake with the packet server failed.",
		Suggestion: "Check client.url and that the server is running.",
	},
	CodeGaveUp: {
		Category: CategoryTransport,
		Message:  "Connection gave up",
		Detail:   "The connection dropped and every reconnect attempt failed.",
	},

	// Schema (B030-B039)
	CodeSchemaLoad: {
		Category:   CategoryProtocol,
		Message:    "Schema registry failed to load",
		Suggestion: "Regenerate the descriptor set with protoc --include_imports -o.",
	},
	CodeUnknownKey: {
		Category:   CategoryProtocol,
		Message:    "Unknown packet key",
		Suggestion: "Run `beachbev schema` to list the bound keys.",
	},

	// Storage (B040-B049)
	CodeStorage: {
		Category: CategoryStorage,
		Message:  "Storage request failed",
	},

	// CLI (B050-B059)
	CodeMissingFlag: {
		Category: CategoryCLI,
		Message:  "Missing required flag",
	},
	CodeInvalidArgument: {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
	CodeCommand: {
		Category:   CategoryCLI,
		Message:    "Command failed",
		Suggestion: "Run with --help to check the usage.",
	},
}

// Codes returns all registered error codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
