// Package config loads the cleantools configuration file.
//
// The file is YAML. It is validated against a JSON schema reflected from
// [Config] before it is decoded, so schema violations are reported with the
// line and column of the offending key.
package config
