// Package config loads beachbev.yaml.
//
// # Configuration File Structure
//
//	site:
//	  https_port: 443
//	  http_port: 80
//	  static_dir: public
//	  cert_file: /etc/beachbev/fullchain.pem
//	  key_file: /etc/beachbev/privkey.pem
//	client:
//	  url: wss://beachbev.com:8443/
//	  request_timeout: 15s
//	  heartbeat: 30s
//	reconnect:
//	  max_attempts: 5
//	  base_delay: 500ms
//	  max_delay: 30s
//	storage:
//	  bucket: beachbev-resumes
//	  region: us-west-1
//	  max_attempts: 3
//	logging:
//	  level: info
//	metrics:
//	  enabled: true
//	  addr: ":9090"
//
// ${VAR} references are expanded from the environment, and BEACHBEV_*
// variables (BEACHBEV_SITE_HTTPS_PORT, BEACHBEV_CLIENT_URL, ...) override
// file values. Command-line flags override both.
package config
