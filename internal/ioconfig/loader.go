// Package ioconfig reads config.yaml and GMLAS_ environment variables.
package ioconfig

import (
	"bytes"
	"strings"

	"github.com/gnames/gmlas/internal/iofs"
	"github.com/gnames/gmlas/pkg/config"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override
// config.yaml values.
const EnvPrefix = "GMLAS"

// Load reads configuration from the file at path. Values missing in the
// file keep their defaults. Environment variables take precedence over
// the file.
func Load(path string) (*config.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	def, err := yaml.Marshal(config.New())
	if err != nil {
		return nil, iofs.ReadFileError(path, err)
	}
	if err = v.ReadConfig(bytes.NewReader(def)); err != nil {
		return nil, iofs.ReadFileError(path, err)
	}

	v.SetConfigFile(path)
	if err = v.MergeInConfig(); err != nil {
		return nil, iofs.ReadFileError(path, err)
	}

	initEnvVars(v)

	var res config.Config
	if err = v.Unmarshal(&res); err != nil {
		return nil, iofs.ReadFileError(path, err)
	}
	return &res, nil
}

func initEnvVars(v *viper.Viper) {
	// Only scalar settings are exposed as environment variables. Lists
	// and maps stay in config.yaml.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	keys := []string{
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.database",
		"database.ssl_mode",
		"database.batch_size",

		"analyzer.use_arrays",
		"analyzer.use_null_state",
		"analyzer.instantiate_gml_features_only",
		"analyzer.identifier_max_length",
		"analyzer.case_insensitive_identifier",
		"analyzer.pg_identifier_laundering",
		"analyzer.maximum_fields_for_flattening",
		"analyzer.always_generate_ogr_id",
		"analyzer.include_documentation",

		"reader.remove_unused_layers",
		"reader.remove_unused_fields",
		"reader.max_level",
		"reader.max_content_size",
		"reader.warn_unexpected",
		"reader.validate",
		"reader.fail_if_validation_error",
		"reader.swap_coordinates",
		"reader.swe_process_data_record",
		"reader.swe_process_data_array",
		"reader.expose_metadata_layers",

		"xlink.resolution_enabled",
		"xlink.allow_remote_download",
		"xlink.timeout",
		"xlink.max_file_size",
		"xlink.cache_results",

		"output.format",
		"output.path",

		"writer.wrapping",
		"writer.indent_size",
		"writer.comment",

		"log.level",
		"log.format",
		"log.destination",

		"jobs_number",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.AutomaticEnv()
}
