// Package config loads the YAML configuration file shared by the tern
// commands and applies defaults for anything left unset.
package config
