// Package config provides configuration management for GMLAS.
//
// This package has no I/O dependencies (no file operations, no network calls).
// Validation functions may write user-facing warnings via gn.Warn().
//
// # Configuration Sources
//
// Precedence (highest to lowest): CLI flags > env vars > config.yaml > defaults
//
// # Design Principles
//
// - Default config (from New()) is always valid - no validation needed
// - All mutations go through Option functions - the only way to modify Config
// - Invalid options are rejected with gn.Warn() - config remains in valid state
// - ToOptions() converts persistent fields (those in config.yaml)
// - Environment variables match scalar ToOptions() fields
//
// # Persistent vs Runtime Fields
//
// Persistent fields (in ToOptions, config.yaml, and env vars):
//   - Database: host, port, user, password, database, ssl_mode, batch_size
//   - Analyzer: arrays, null state, identifier laundering, flattening,
//     ignored xpaths, children constraints
//   - Reader: pruning, resource guards, unexpected content reporting,
//     validation, axis swapping, SWE processing
//   - XLink: resolution switches, timeouts, URL specific rules
//   - Output: format, path
//   - Writer: wrapping, indentation, comment
//   - Log: level, format, destination
//   - General: jobs_number
//
// Runtime-only fields (CLI flags only):
//   - Reader.SchemaFiles (explicit --xsd list)
//   - HomeDir (set once at startup)
//
// # Environment Variables
//
// Use GMLAS_ prefix with underscores for nesting:
//
//	GMLAS_DATABASE_HOST=localhost
//	GMLAS_ANALYZER_USE_ARRAYS=false
//	GMLAS_READER_WARN_UNEXPECTED=true
//	GMLAS_LOG_LEVEL=debug
//	GMLAS_JOBS_NUMBER=8
package config

import (
	"runtime"
)

// Config represents the complete GMLAS configuration.
type Config struct {
	// Database contains PostgreSQL connection settings used by the
	// postgres output.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Analyzer contains settings that change how XML schemas are turned
	// into layers and fields.
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`

	// Reader contains settings of the streaming instance reader.
	Reader ReaderConfig `mapstructure:"reader" yaml:"reader"`

	// XLink contains settings for resolution of xlink:href references.
	XLink XLinkConfig `mapstructure:"xlink" yaml:"xlink"`

	// Output describes where converted features go.
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Writer contains settings of XML documents rebuilt from layers.
	Writer WriterConfig `mapstructure:"writer" yaml:"writer"`

	Log LogConfig `mapstructure:"log" yaml:"log"`

	// JobsNumber is the number of concurrent workers for parallel operations.
	// Default value is set accoring to the number of available threads.
	JobsNumber int `mapstructure:"jobs_number" yaml:"jobs_number"`

	// HomeDir determines where config, cache and logs directories reside.
	// It must be set by CLI during init, there is no default value for it.
	HomeDir string
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname or IP address.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the PostgreSQL server port number.
	Port int `mapstructure:"port" yaml:"port"`

	// User is the PostgreSQL database username.
	User string `mapstructure:"user" yaml:"user"`

	// Password is the PostgreSQL database password.
	Password string `mapstructure:"password" yaml:"password"`

	// Database is the PostgreSQL database name to connect to.
	Database string `mapstructure:"database" yaml:"database"`

	// SSLMode specifies the SSL connection mode.
	// Valid values: "disable", "require", "verify-ca", "verify-full"
	SSLMode string `mapstructure:"ssl_mode" yaml:"ssl_mode"`

	// BatchSize defines the number of features buffered per layer before
	// they are flushed to the database. Used by both SQLite and PostgreSQL
	// outputs.
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size"`
}

// AnalyzerConfig contains settings of the schema analyzer.
type AnalyzerConfig struct {
	// UseArrays allows repeated elements of simple types to be stored as
	// list-typed columns instead of child tables.
	UseArrays bool `mapstructure:"use_arrays" yaml:"use_arrays"`

	// UseNullState creates <element>_nil fields for optional nillable
	// elements.
	UseNullState bool `mapstructure:"use_null_state" yaml:"use_null_state"`

	// InstantiateGMLFeaturesOnly restricts top-level layers to elements
	// deriving from gml:AbstractFeature, when the schemas contain any.
	InstantiateGMLFeaturesOnly bool `mapstructure:"instantiate_gml_features_only" yaml:"instantiate_gml_features_only"`

	// IdentifierMaxLength limits layer and field names. Zero means no limit,
	// otherwise the value must be at least 10.
	IdentifierMaxLength int `mapstructure:"identifier_max_length" yaml:"identifier_max_length"`

	// CaseInsensitiveIdentifier compares names case-insensitively when
	// searching for duplicates.
	CaseInsensitiveIdentifier bool `mapstructure:"case_insensitive_identifier" yaml:"case_insensitive_identifier"`

	// PGIdentifierLaundering lowercases names and replaces characters that
	// are not letters, digits or underscore.
	PGIdentifierLaundering bool `mapstructure:"pg_identifier_laundering" yaml:"pg_identifier_laundering"`

	// MaximumFieldsForFlattening is the number of fields above which a
	// nested element gets its own layer instead of being flattened into its
	// parent.
	MaximumFieldsForFlattening int `mapstructure:"maximum_fields_for_flattening" yaml:"maximum_fields_for_flattening"`

	// AlwaysGenerateOGRID forces a synthetic ogr_pkid field even when an
	// xs:ID attribute is available.
	AlwaysGenerateOGRID bool `mapstructure:"always_generate_ogr_id" yaml:"always_generate_ogr_id"`

	// IncludeDocumentation copies xs:documentation into layer and field
	// metadata.
	IncludeDocumentation bool `mapstructure:"include_documentation" yaml:"include_documentation"`

	// Namespaces maps prefixes used in XPath patterns of this configuration
	// to namespace URIs.
	Namespaces map[string]string `mapstructure:"namespaces" yaml:"namespaces"`

	// IgnoredXPaths lists elements and attributes excluded from analysis.
	IgnoredXPaths []IgnoredXPath `mapstructure:"ignored_xpaths" yaml:"ignored_xpaths"`

	// ForcedFlattenedXPaths lists elements that are flattened into their
	// parent even when they exceed MaximumFieldsForFlattening.
	ForcedFlattenedXPaths []string `mapstructure:"forced_flattened_xpaths" yaml:"forced_flattened_xpaths"`

	// DisabledFlattenedXPaths lists elements that always get their own
	// layer.
	DisabledFlattenedXPaths []string `mapstructure:"disabled_flattened_xpaths" yaml:"disabled_flattened_xpaths"`

	// ChildrenConstraints restricts which substitution group members may
	// appear at a given place.
	ChildrenConstraints []ChildrenConstraint `mapstructure:"children_constraints" yaml:"children_constraints"`
}

// IgnoredXPath is one element or attribute pattern to ignore.
type IgnoredXPath struct {
	// XPath uses prefixes from AnalyzerConfig.Namespaces.
	XPath string `mapstructure:"xpath" yaml:"xpath"`
	// Warn reports instance content that matches the pattern as a warning
	// instead of a debug message.
	Warn bool `mapstructure:"warn" yaml:"warn"`
}

// ChildrenConstraint lists element names allowed as realizations of an
// abstract element at XPath.
type ChildrenConstraint struct {
	XPath    string   `mapstructure:"xpath"    yaml:"xpath"`
	Children []string `mapstructure:"children" yaml:"children"`
}

// ReaderConfig contains settings of the streaming instance reader.
type ReaderConfig struct {
	// RemoveUnusedLayers drops layers that received no features during the
	// first pass.
	RemoveUnusedLayers bool `mapstructure:"remove_unused_layers" yaml:"remove_unused_layers"`

	// RemoveUnusedFields drops fields that were never set during the first
	// pass.
	RemoveUnusedFields bool `mapstructure:"remove_unused_fields" yaml:"remove_unused_fields"`

	// MaxLevel is the maximum XML nesting depth.
	MaxLevel int `mapstructure:"max_level" yaml:"max_level"`

	// MaxContentSize is the maximum size in bytes of a single field content.
	MaxContentSize int `mapstructure:"max_content_size" yaml:"max_content_size"`

	// WarnUnexpected reports unexpected elements and attributes as warnings.
	WarnUnexpected bool `mapstructure:"warn_unexpected" yaml:"warn_unexpected"`

	// Validate checks instance content against the analyzed schema.
	Validate bool `mapstructure:"validate" yaml:"validate"`

	// FailIfValidationError turns validation errors into a failure.
	FailIfValidationError bool `mapstructure:"fail_if_validation_error" yaml:"fail_if_validation_error"`

	// SwapCoordinates controls axis order swapping of geometries.
	// Valid values: "auto", "yes", "no".
	SwapCoordinates string `mapstructure:"swap_coordinates" yaml:"swap_coordinates"`

	// SWEProcessDataRecord creates fields from swe:DataRecord content.
	SWEProcessDataRecord bool `mapstructure:"swe_process_data_record" yaml:"swe_process_data_record"`

	// SWEProcessDataArray creates layers from swe:DataArray content.
	SWEProcessDataArray bool `mapstructure:"swe_process_data_array" yaml:"swe_process_data_array"`

	// ExposeMetadataLayers writes layer, field and relationship metadata
	// tables next to the data.
	ExposeMetadataLayers bool `mapstructure:"expose_metadata_layers" yaml:"expose_metadata_layers"`

	// SchemaFiles overrides schemas referenced by the instance document.
	// Runtime-only field.
	SchemaFiles []string `mapstructure:"-" yaml:"-"`
}

// XLinkConfig contains xlink:href resolution settings.
type XLinkConfig struct {
	// ResolutionEnabled resolves every remote href as raw content, not only
	// those matching a rule.
	ResolutionEnabled bool `mapstructure:"resolution_enabled" yaml:"resolution_enabled"`

	// AllowRemoteDownload permits http(s) downloads.
	AllowRemoteDownload bool `mapstructure:"allow_remote_download" yaml:"allow_remote_download"`

	// Timeout in seconds for one download.
	Timeout int `mapstructure:"timeout" yaml:"timeout"`

	// MaxFileSize in bytes of a downloaded resource.
	MaxFileSize int `mapstructure:"max_file_size" yaml:"max_file_size"`

	// CacheResults keeps downloaded resources in the cache directory.
	CacheResults bool `mapstructure:"cache_results" yaml:"cache_results"`

	// Rules are URL specific resolution rules.
	Rules []XLinkRule `mapstructure:"rules" yaml:"rules"`
}

// XLinkRule is applied to hrefs starting with URLPrefix.
type XLinkRule struct {
	URLPrefix string `mapstructure:"url_prefix" yaml:"url_prefix"`
	// ResolutionMode is "RawContent" or "FieldsFromXPath".
	ResolutionMode string            `mapstructure:"resolution_mode" yaml:"resolution_mode"`
	Fields         []XLinkField      `mapstructure:"fields"          yaml:"fields"`
	Namespaces     map[string]string `mapstructure:"namespaces"      yaml:"namespaces"`
}

// XLinkField extracts a value from a resolved document.
type XLinkField struct {
	Name string `mapstructure:"name"  yaml:"name"`
	// Type is one of string, integer, long, double, dateTime.
	Type  string `mapstructure:"type"  yaml:"type"`
	XPath string `mapstructure:"xpath" yaml:"xpath"`
}

// OutputConfig describes the destination of converted features.
type OutputConfig struct {
	// Format is one of "sqlite", "postgres", "summary".
	Format string `mapstructure:"format" yaml:"format"`
	// Path of the SQLite file. Empty means <input>.sqlite.
	Path string `mapstructure:"path" yaml:"path"`
}

// WriterConfig contains settings of the XML writer.
type WriterConfig struct {
	// Wrapping is "gmlas" for ogr_gmlas:FeatureCollection or "wfs2" for
	// wfs:FeatureCollection.
	Wrapping string `mapstructure:"wrapping" yaml:"wrapping"`
	// IndentSize is the number of spaces per nesting level. 0 writes
	// features without line breaks.
	IndentSize int `mapstructure:"indent_size" yaml:"indent_size"`
	// Comment is written after the XML declaration when not empty.
	Comment string `mapstructure:"comment" yaml:"comment"`
}

// LogConfig provides typical settings for application logs.
type LogConfig struct {
	// Format can be 'json', 'text' or 'tint' (user-facing and colored).
	Format string `mapstructure:"format"      yaml:"format"`
	// Level of logging -- 'error', 'warn', 'info', 'debug'
	Level string `mapstructure:"level"       yaml:"level"`
	// Destination can be a log file (to default place), STDERR or STDOUT
	Destination string `mapstructure:"destination" yaml:"destination"`
}

// New creates a Config with sensible default values.
// The returned config is always valid and ready to use.
// Default values can be overridden using Option functions via Update().
func New() *Config {
	res := &Config{
		Database: DatabaseConfig{
			Host:      "localhost",
			Port:      5432,
			User:      "postgres",
			Password:  "postgres",
			Database:  "gmlas",
			SSLMode:   "disable",
			BatchSize: 50_000,
		},
		Analyzer: AnalyzerConfig{
			UseArrays:                  true,
			InstantiateGMLFeaturesOnly: true,
			CaseInsensitiveIdentifier:  true,
			PGIdentifierLaundering:     true,
			MaximumFieldsForFlattening: 10,
		},
		Reader: ReaderConfig{
			MaxLevel:             100,
			MaxContentSize:       512_000_000,
			SwapCoordinates:      "auto",
			SWEProcessDataRecord: true,
			SWEProcessDataArray:  true,
		},
		XLink: XLinkConfig{
			AllowRemoteDownload: true,
			Timeout:             10,
			MaxFileSize:         1_048_576,
		},
		Output: OutputConfig{
			Format: "sqlite",
		},
		Writer: WriterConfig{
			Wrapping:   "gmlas",
			IndentSize: 2,
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
			// for now file is rewritten every time the log starts
			Destination: "file",
		},
		JobsNumber: runtime.NumCPU(), // Default to number of CPU threads
	}

	return res
}
