package config

// ModelConfig represents the configuration for the classifier model
type ModelConfig struct {
	ArtifactPath   string
	HamLabel       string
	SpamLabel      string
	TrustedDomains []string
}

// ServerConfig represents the configuration for the serving adapters
type ServerConfig struct {
	Mode             string
	ListenAddress    string
	BlockSpam        bool
	ModifySubject    bool
	SubjectPrefix    string
	ClassHeader      string
	ConfidenceHeader string
	SchemaHeader     string
	PostfixAddress   string
	PostfixPort      int
	PostfixEnabled   bool
}

// ExplainConfig represents the configuration for prediction explanations
type ExplainConfig struct {
	Enabled     bool
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	MaxBodySize int
}

// GetModel returns the model configuration
func (c *Config) GetModel() ModelConfig {
	return ModelConfig{
		ArtifactPath:   c.GetString("model.artifact_path"),
		HamLabel:       c.GetString("model.ham_label"),
		SpamLabel:      c.GetString("model.spam_label"),
		TrustedDomains: c.GetStringSlice("model.trusted_domains"),
	}
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Mode:             c.GetString("server.mode"),
		ListenAddress:    c.GetString("server.listen_address"),
		BlockSpam:        c.GetBool("server.block_spam"),
		ModifySubject:    c.GetBool("server.modify_subject"),
		SubjectPrefix:    c.GetString("server.subject_prefix"),
		ClassHeader:      c.GetString("server.headers.class"),
		ConfidenceHeader: c.GetString("server.headers.confidence"),
		SchemaHeader:     c.GetString("server.headers.schema"),
		PostfixAddress:   c.GetString("server.postfix.address"),
		PostfixPort:      c.GetInt("server.postfix.port"),
		PostfixEnabled:   c.GetBool("server.postfix.enabled"),
	}
}

// GetExplain returns the explanation configuration
func (c *Config) GetExplain() ExplainConfig {
	return ExplainConfig{
		Enabled:     c.GetBool("explain.enabled"),
		APIKey:      c.GetString("explain.api_key"),
		ModelName:   c.GetString("explain.model_name"),
		MaxTokens:   c.GetInt("explain.max_tokens"),
		Temperature: float32(c.GetFloat64("explain.temperature")),
		MaxBodySize: c.GetInt("explain.max_body_size"),
	}
}
