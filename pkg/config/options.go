package config

import (
	"strings"

	"github.com/gnames/gn"
)

// Option is a function that modifies a Config.
// Options validate inputs and reject invalid values with warnings.
type Option func(*Config)

// OptDatabaseHost sets the PostgreSQL server hostname or IP address.
func OptDatabaseHost(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Host", s) {
			c.Database.Host = s
		}
	}
}

// OptDatabasePort sets the PostgreSQL server port number.
func OptDatabasePort(i int) Option {
	return func(c *Config) {
		if isValidInt("Database Port", i) {
			c.Database.Port = i
		}
	}
}

// OptDatabaseUser sets the PostgreSQL database username.
func OptDatabaseUser(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database User", s) {
			c.Database.User = s
		}
	}
}

// OptDatabasePassword sets the PostgreSQL database password.
func OptDatabasePassword(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Password", s) {
			c.Database.Password = s
		}
	}
}

// OptDatabaseDatabase sets the PostgreSQL database name to connect to.
func OptDatabaseDatabase(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Database Name", s) {
			c.Database.Database = s
		}
	}
}

// OptDatabaseSSLMode sets the SSL connection mode.
// Valid values: "disable", "require", "verify-ca", "verify-full".
func OptDatabaseSSLMode(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Database.SSLMode", s) {
			c.Database.SSLMode = s
		}
	}
}

// OptDatabaseBatchSize sets the number of features written per batch.
func OptDatabaseBatchSize(i int) Option {
	return func(c *Config) {
		if isValidInt("Batch Size", i) {
			c.Database.BatchSize = i
		}
	}
}

// OptAnalyzerUseArrays enables list-typed columns for repeated simple
// elements.
func OptAnalyzerUseArrays(b bool) Option {
	return func(c *Config) {
		c.Analyzer.UseArrays = b
	}
}

// OptAnalyzerUseNullState enables <element>_nil fields.
func OptAnalyzerUseNullState(b bool) Option {
	return func(c *Config) {
		c.Analyzer.UseNullState = b
	}
}

// OptAnalyzerInstantiateGMLFeaturesOnly restricts layers to GML features
// when the schemas define any.
func OptAnalyzerInstantiateGMLFeaturesOnly(b bool) Option {
	return func(c *Config) {
		c.Analyzer.InstantiateGMLFeaturesOnly = b
	}
}

// OptAnalyzerIdentifierMaxLength sets the maximum length of layer and
// field names. Zero disables the limit, other values must be at least 10.
func OptAnalyzerIdentifierMaxLength(i int) Option {
	return func(c *Config) {
		if i == 0 || i >= MinIdentifierMaxLength {
			c.Analyzer.IdentifierMaxLength = i
			return
		}
		warnIgnored("Analyzer Identifier Max Length", i)
	}
}

// OptAnalyzerCaseInsensitiveIdentifier sets case-insensitive duplicate
// detection of names.
func OptAnalyzerCaseInsensitiveIdentifier(b bool) Option {
	return func(c *Config) {
		c.Analyzer.CaseInsensitiveIdentifier = b
	}
}

// OptAnalyzerPGIdentifierLaundering sets PostgreSQL-style laundering of
// names.
func OptAnalyzerPGIdentifierLaundering(b bool) Option {
	return func(c *Config) {
		c.Analyzer.PGIdentifierLaundering = b
	}
}

// OptAnalyzerMaximumFieldsForFlattening sets the number of fields above
// which nested elements get their own layer.
func OptAnalyzerMaximumFieldsForFlattening(i int) Option {
	return func(c *Config) {
		if isValidInt("Analyzer Maximum Fields For Flattening", i) {
			c.Analyzer.MaximumFieldsForFlattening = i
		}
	}
}

// OptAnalyzerAlwaysGenerateOGRID forces synthetic ogr_pkid fields.
func OptAnalyzerAlwaysGenerateOGRID(b bool) Option {
	return func(c *Config) {
		c.Analyzer.AlwaysGenerateOGRID = b
	}
}

// OptAnalyzerIncludeDocumentation keeps xs:documentation in metadata.
func OptAnalyzerIncludeDocumentation(b bool) Option {
	return func(c *Config) {
		c.Analyzer.IncludeDocumentation = b
	}
}

// OptAnalyzerNamespaces sets prefix to URI mapping used by configured
// XPath patterns.
func OptAnalyzerNamespaces(m map[string]string) Option {
	return func(c *Config) {
		if len(m) == 0 {
			return
		}
		res := make(map[string]string, len(m))
		for k, v := range m {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k == "" || v == "" {
				gn.Warn("Empty namespace prefix or URI, ignoring <em>%s</em>", k)
				continue
			}
			res[k] = v
		}
		c.Analyzer.Namespaces = res
	}
}

// OptAnalyzerIgnoredXPaths sets patterns of ignored elements and
// attributes.
func OptAnalyzerIgnoredXPaths(xs []IgnoredXPath) Option {
	return func(c *Config) {
		var res []IgnoredXPath
		for _, v := range xs {
			v.XPath = strings.TrimSpace(v.XPath)
			if isValidString("Analyzer Ignored XPath", v.XPath) {
				res = append(res, v)
			}
		}
		c.Analyzer.IgnoredXPaths = res
	}
}

// OptAnalyzerForcedFlattenedXPaths sets patterns of elements that are
// always flattened.
func OptAnalyzerForcedFlattenedXPaths(ss []string) Option {
	return func(c *Config) {
		c.Analyzer.ForcedFlattenedXPaths = cleanList(ss)
	}
}

// OptAnalyzerDisabledFlattenedXPaths sets patterns of elements that always
// get their own layer.
func OptAnalyzerDisabledFlattenedXPaths(ss []string) Option {
	return func(c *Config) {
		c.Analyzer.DisabledFlattenedXPaths = cleanList(ss)
	}
}

// OptAnalyzerChildrenConstraints sets allowed substitution group members
// per place.
func OptAnalyzerChildrenConstraints(cc []ChildrenConstraint) Option {
	return func(c *Config) {
		var res []ChildrenConstraint
		for _, v := range cc {
			v.XPath = strings.TrimSpace(v.XPath)
			v.Children = cleanList(v.Children)
			if isValidString("Analyzer Children Constraint XPath", v.XPath) {
				res = append(res, v)
			}
		}
		c.Analyzer.ChildrenConstraints = res
	}
}

// OptReaderRemoveUnusedLayers drops layers without features.
func OptReaderRemoveUnusedLayers(b bool) Option {
	return func(c *Config) {
		c.Reader.RemoveUnusedLayers = b
	}
}

// OptReaderRemoveUnusedFields drops fields that were never set.
func OptReaderRemoveUnusedFields(b bool) Option {
	return func(c *Config) {
		c.Reader.RemoveUnusedFields = b
	}
}

// OptReaderMaxLevel sets the maximum XML nesting depth.
func OptReaderMaxLevel(i int) Option {
	return func(c *Config) {
		if isValidInt("Reader Max Level", i) {
			c.Reader.MaxLevel = i
		}
	}
}

// OptReaderMaxContentSize sets the maximum size of a field content.
func OptReaderMaxContentSize(i int) Option {
	return func(c *Config) {
		if isValidInt("Reader Max Content Size", i) {
			c.Reader.MaxContentSize = i
		}
	}
}

// OptReaderWarnUnexpected reports unexpected content as warnings.
func OptReaderWarnUnexpected(b bool) Option {
	return func(c *Config) {
		c.Reader.WarnUnexpected = b
	}
}

// OptReaderValidate enables validation of instance documents.
func OptReaderValidate(b bool) Option {
	return func(c *Config) {
		c.Reader.Validate = b
	}
}

// OptReaderFailIfValidationError turns validation errors into failures.
func OptReaderFailIfValidationError(b bool) Option {
	return func(c *Config) {
		c.Reader.FailIfValidationError = b
	}
}

// OptReaderSwapCoordinates sets axis order swapping.
// Valid values: "auto", "yes", "no".
func OptReaderSwapCoordinates(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Reader.SwapCoordinates", s) {
			c.Reader.SwapCoordinates = s
		}
	}
}

// OptReaderSWEProcessDataRecord enables swe:DataRecord processing.
func OptReaderSWEProcessDataRecord(b bool) Option {
	return func(c *Config) {
		c.Reader.SWEProcessDataRecord = b
	}
}

// OptReaderSWEProcessDataArray enables swe:DataArray processing.
func OptReaderSWEProcessDataArray(b bool) Option {
	return func(c *Config) {
		c.Reader.SWEProcessDataArray = b
	}
}

// OptReaderExposeMetadataLayers writes metadata tables.
func OptReaderExposeMetadataLayers(b bool) Option {
	return func(c *Config) {
		c.Reader.ExposeMetadataLayers = b
	}
}

// OptReaderSchemaFiles overrides schemas referenced by the document.
// Runtime-only field - not in ToOptions().
func OptReaderSchemaFiles(ss []string) Option {
	return func(c *Config) {
		if ss = cleanList(ss); len(ss) > 0 {
			c.Reader.SchemaFiles = ss
		}
	}
}

// OptXLinkResolutionEnabled resolves all remote hrefs as raw content.
func OptXLinkResolutionEnabled(b bool) Option {
	return func(c *Config) {
		c.XLink.ResolutionEnabled = b
	}
}

// OptXLinkAllowRemoteDownload permits http(s) downloads.
func OptXLinkAllowRemoteDownload(b bool) Option {
	return func(c *Config) {
		c.XLink.AllowRemoteDownload = b
	}
}

// OptXLinkTimeout sets download timeout in seconds.
func OptXLinkTimeout(i int) Option {
	return func(c *Config) {
		if isValidInt("XLink Timeout", i) {
			c.XLink.Timeout = i
		}
	}
}

// OptXLinkMaxFileSize sets the maximum size of a downloaded resource.
func OptXLinkMaxFileSize(i int) Option {
	return func(c *Config) {
		if isValidInt("XLink Max File Size", i) {
			c.XLink.MaxFileSize = i
		}
	}
}

// OptXLinkCacheResults keeps downloaded resources in the cache directory.
func OptXLinkCacheResults(b bool) Option {
	return func(c *Config) {
		c.XLink.CacheResults = b
	}
}

// OptXLinkRules sets URL specific resolution rules.
func OptXLinkRules(rules []XLinkRule) Option {
	return func(c *Config) {
		var res []XLinkRule
		for _, v := range rules {
			v.URLPrefix = strings.TrimSpace(v.URLPrefix)
			if !isValidString("XLink Rule URL Prefix", v.URLPrefix) {
				continue
			}
			if !isValidEnum("XLink.ResolutionMode", v.ResolutionMode) {
				continue
			}
			res = append(res, v)
		}
		c.XLink.Rules = res
	}
}

// OptOutputFormat sets the output format.
// Valid values: "sqlite", "postgres", "summary".
func OptOutputFormat(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Output.Format", s) {
			c.Output.Format = s
		}
	}
}

// OptOutputPath sets the path of the SQLite output.
func OptOutputPath(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Output Path", s) {
			c.Output.Path = s
		}
	}
}

// OptWriterWrapping sets the container of written features.
// Valid values: "gmlas", "wfs2".
func OptWriterWrapping(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Writer.Wrapping", s) {
			c.Writer.Wrapping = s
		}
	}
}

// OptWriterIndentSize sets the indentation of written XML. 0 disables
// indentation.
func OptWriterIndentSize(i int) Option {
	return func(c *Config) {
		if i < 0 || i > 16 {
			warnIgnored("Writer.IndentSize", i)
			return
		}
		c.Writer.IndentSize = i
	}
}

// OptWriterComment sets a comment written at the top of XML output.
func OptWriterComment(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		c.Writer.Comment = s
	}
}

// OptLogLevel sets the logging level.
// Valid values: "debug", "info", "warn", "error".
func OptLogLevel(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Level", s) {
			c.Log.Level = s
		}
	}
}

// OptLogFormat sets the log output format.
// Valid values: "json", "text", "tint".
func OptLogFormat(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Format", s) {
			c.Log.Format = s
		}
	}
}

// OptLogDestination sets where logs are written.
// Valid values: "file", "stderr", "stdout".
func OptLogDestination(s string) Option {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return func(c *Config) {
		if isValidEnum("Log.Destination", s) {
			c.Log.Destination = s
		}
	}
}

// OptJobsNumber sets the number of concurrent workers for parallel operations.
// Default is runtime.NumCPU().
func OptJobsNumber(i int) Option {
	return func(c *Config) {
		if isValidInt("Jobs Number", i) {
			c.JobsNumber = i
		}
	}
}

// OptHomeDir sets the home directory for config, cache, and log locations.
// Set once at startup from os.UserHomeDir().
// Runtime-only field - not in ToOptions().
func OptHomeDir(s string) Option {
	s = strings.TrimSpace(s)
	return func(c *Config) {
		if isValidString("Home Directory", s) {
			c.HomeDir = s
		}
	}
}

func cleanList(ss []string) []string {
	var res []string
	for _, v := range ss {
		v = strings.TrimSpace(v)
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}
