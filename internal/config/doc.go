// Package config handles configuration loading for budchat.
//
// Configuration is loaded from YAML files with environment variable
// expansion. Values can reference environment variables:
//
//	providers:
//	  openai:
//	    api_key: "${OPENAI_API_KEY}"
//
// Sections:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
//	database:
//	  path: "/var/lib/budchat/budchat.db"
//
//	providers:
//	  openai:
//	    api_key: "${OPENAI_API_KEY}"
//	  anthropic:
//	    api_key: "${ANTHROPIC_API_KEY}"
//
//	chat:
//	  default_model: "gpt-4o-mini"
//	  system_prompt: "You are a helpful assistant."
//	  temperature: 0.7    # omit to use the vendor default
//	  max_tokens: 4096    # omit for no cap (Anthropic falls back to 8192)
//	  max_iterations: 10
//
//	tools:
//	  servers:
//	    - name: "search"
//	      url: "http://localhost:9001"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
