package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gnames/gn"
)

// Update applies a slice of Option functions to the Config.
// This is the only way to modify a Config after creation.
// Invalid options are rejected with warnings - config remains in valid state.
func (c *Config) Update(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// ToOptions converts the Config to a slice of Option functions.
// Only includes persistent fields appropriate for config.yaml.
// Excludes runtime-only fields (HomeDir, Reader.SchemaFiles).
// Used for round-tripping config.yaml ↔ Config conversions.
func (c *Config) ToOptions() []Option {
	var res []Option
	var s string
	var i int
	s = c.Database.Host
	if s != "" {
		res = append(res, OptDatabaseHost(s))
	}
	i = c.Database.Port
	if i > 0 {
		res = append(res, OptDatabasePort(i))
	}
	s = c.Database.User
	if s != "" {
		res = append(res, OptDatabaseUser(s))
	}
	s = c.Database.Password
	if s != "" {
		res = append(res, OptDatabasePassword(s))
	}
	s = c.Database.Database
	if s != "" {
		res = append(res, OptDatabaseDatabase(s))
	}
	s = c.Database.SSLMode
	if s != "" {
		res = append(res, OptDatabaseSSLMode(s))
	}
	i = c.Database.BatchSize
	if i > 0 {
		res = append(res, OptDatabaseBatchSize(i))
	}

	a := c.Analyzer
	res = append(res,
		OptAnalyzerUseArrays(a.UseArrays),
		OptAnalyzerUseNullState(a.UseNullState),
		OptAnalyzerInstantiateGMLFeaturesOnly(a.InstantiateGMLFeaturesOnly),
		OptAnalyzerCaseInsensitiveIdentifier(a.CaseInsensitiveIdentifier),
		OptAnalyzerPGIdentifierLaundering(a.PGIdentifierLaundering),
		OptAnalyzerAlwaysGenerateOGRID(a.AlwaysGenerateOGRID),
		OptAnalyzerIncludeDocumentation(a.IncludeDocumentation),
	)
	if a.IdentifierMaxLength > 0 {
		res = append(res, OptAnalyzerIdentifierMaxLength(a.IdentifierMaxLength))
	}
	if a.MaximumFieldsForFlattening > 0 {
		res = append(res,
			OptAnalyzerMaximumFieldsForFlattening(a.MaximumFieldsForFlattening))
	}
	if len(a.Namespaces) > 0 {
		res = append(res, OptAnalyzerNamespaces(a.Namespaces))
	}
	if len(a.IgnoredXPaths) > 0 {
		res = append(res, OptAnalyzerIgnoredXPaths(a.IgnoredXPaths))
	}
	if len(a.ForcedFlattenedXPaths) > 0 {
		res = append(res, OptAnalyzerForcedFlattenedXPaths(a.ForcedFlattenedXPaths))
	}
	if len(a.DisabledFlattenedXPaths) > 0 {
		res = append(res,
			OptAnalyzerDisabledFlattenedXPaths(a.DisabledFlattenedXPaths))
	}
	if len(a.ChildrenConstraints) > 0 {
		res = append(res, OptAnalyzerChildrenConstraints(a.ChildrenConstraints))
	}

	r := c.Reader
	res = append(res,
		OptReaderRemoveUnusedLayers(r.RemoveUnusedLayers),
		OptReaderRemoveUnusedFields(r.RemoveUnusedFields),
		OptReaderWarnUnexpected(r.WarnUnexpected),
		OptReaderValidate(r.Validate),
		OptReaderFailIfValidationError(r.FailIfValidationError),
		OptReaderSWEProcessDataRecord(r.SWEProcessDataRecord),
		OptReaderSWEProcessDataArray(r.SWEProcessDataArray),
		OptReaderExposeMetadataLayers(r.ExposeMetadataLayers),
	)
	if r.MaxLevel > 0 {
		res = append(res, OptReaderMaxLevel(r.MaxLevel))
	}
	if r.MaxContentSize > 0 {
		res = append(res, OptReaderMaxContentSize(r.MaxContentSize))
	}
	if r.SwapCoordinates != "" {
		res = append(res, OptReaderSwapCoordinates(r.SwapCoordinates))
	}

	x := c.XLink
	res = append(res,
		OptXLinkResolutionEnabled(x.ResolutionEnabled),
		OptXLinkAllowRemoteDownload(x.AllowRemoteDownload),
		OptXLinkCacheResults(x.CacheResults),
	)
	if x.Timeout > 0 {
		res = append(res, OptXLinkTimeout(x.Timeout))
	}
	if x.MaxFileSize > 0 {
		res = append(res, OptXLinkMaxFileSize(x.MaxFileSize))
	}
	if len(x.Rules) > 0 {
		res = append(res, OptXLinkRules(x.Rules))
	}

	s = c.Output.Format
	if s != "" {
		res = append(res, OptOutputFormat(s))
	}
	s = c.Output.Path
	if s != "" {
		res = append(res, OptOutputPath(s))
	}

	w := c.Writer
	if w.Wrapping != "" {
		res = append(res, OptWriterWrapping(w.Wrapping))
	}
	res = append(res, OptWriterIndentSize(w.IndentSize))
	if w.Comment != "" {
		res = append(res, OptWriterComment(w.Comment))
	}

	s = c.Log.Format
	if s != "" {
		res = append(res, OptLogFormat(s))
	}
	s = c.Log.Level
	if s != "" {
		res = append(res, OptLogLevel(s))
	}
	s = c.Log.Destination
	if s != "" {
		res = append(res, OptLogDestination(s))
	}

	i = c.JobsNumber
	if i > 0 {
		res = append(res, OptJobsNumber(i))
	}
	return res
}

func isValidString(name, s string) bool {
	res := s != ""
	if !res {
		gn.Warn("<em>%s</em> cannot be empty, ignoring", name)
	}
	return res
}

func isValidInt(name string, i int) bool {
	res := i > 0
	if !res {
		warnIgnored(name, i)
	}
	return res
}

func warnIgnored(name string, i int) {
	gn.Warn("<em>%s</em> has an invalid value, ignoring %d", name, i)
}

func isValidEnum(name, val string) bool {
	s := struct{}{}
	data := map[string]map[string]struct{}{
		"Database.SSLMode": {"disable": s, "require": s,
			"verify-ca": s, "verify-full": s},
		"Reader.SwapCoordinates": {"auto": s, "yes": s, "no": s},
		"XLink.ResolutionMode":   {"RawContent": s, "FieldsFromXPath": s},
		"Output.Format":          {"sqlite": s, "postgres": s, "summary": s},
		"Writer.Wrapping":        {"gmlas": s, "wfs2": s},
		"Log.Level":              {"debug": s, "info": s, "warn": s, "error": s},
		"Log.Format":             {"json": s, "text": s, "tint": s},
		"Log.Destination":        {"file": s, "stderr": s, "stdout": s},
	}
	vals := slices.Sorted(maps.Keys(data[name]))
	var lines []string
	for _, v := range vals {
		line := fmt.Sprintf("  * %s", v)
		lines = append(lines, line)
	}
	if _, ok := data[name][val]; ok {
		return true
	} else {
		gn.Warn(
			"<em>%s</em> does not support '%s' as a value. "+
				"Valid values are: \n%s\nIgnoring...",
			name, val, strings.Join(lines, "\n"),
		)
		return false
	}
}
