// Package config loads the server configuration file (server.yaml).
//
// Load(path) reads the YAML file, applies defaults (port 8080, 100 req/min
// rate limit, 24h retention, 5s feed interval), then validates. The API key
// is resolved from the environment via auth.key_env so it never lives in
// the config file.
package config
