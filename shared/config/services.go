package config

// AuthConfig describes the Cognito user pool
type AuthConfig struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string
}

// GetAuthConfig reads identity provider settings
func GetAuthConfig() *AuthConfig {
	return &AuthConfig{
		Region:       GetEnv("AWS_REGION", "us-east-1"),
		UserPoolID:   GetEnv("COGNITO_USER_POOL_ID", ""),
		ClientID:     GetEnv("COGNITO_CLIENT_ID", ""),
		ClientSecret: GetEnv("COGNITO_CLIENT_SECRET", ""),
	}
}

// KafkaConfig describes the lifecycle event stream
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// GetKafkaConfig reads broker settings
func GetKafkaConfig(groupID string) *KafkaConfig {
	return &KafkaConfig{
		Brokers: GetEnvList("KAFKA_BROKERS", []string{GetEnv("KAFKA_BROKER", "localhost:9092")}),
		Topic:   GetEnv("KAFKA_TOPIC", "rental-events"),
		GroupID: groupID,
	}
}

// ServicePort returns the listen port for a service
func ServicePort(envKey, defaultPort string) string {
	return GetEnv(envKey, defaultPort)
}
