// Package config loads and watches the agent configuration file (agent.yaml).
//
// Top-level types:
//   - Config{Agent} — full config tree parsed from YAML
//   - AgentConfig — server_url, client_id, client_type, interval,
//     request_timeout, status_addr, auth, backlog, retry, escalation,
//     collector
//   - AuthConfig — header name plus key_env; Key() resolves the API key
//     from the environment so secrets never live in the config file
//   - BacklogConfig, RetryConfig, EscalationConfig, CollectorConfig —
//     delivery-pipeline tuning knobs with defaults matching the shipped
//     agent behaviour (3 attempts, 5s fixed delay, 1000-entry backlog,
//     cool-down after 5 consecutive failed cycles)
//
// Load(path) reads the YAML file, applies defaults, derives client_id from
// the hostname when unset, then validates required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create
// pattern used by atomic-save editors by re-adding the watch after the
// event fires.
package config
