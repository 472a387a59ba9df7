package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	FirebaseProjectID     string
	FirebaseAPIKey        string
	FirebaseDatabaseURL   string
	FirebaseStorageBucket string
	FirebaseCredentials   string
	// Endpoint overrides for the auth REST collaborators (used against the emulator).
	IdentityEndpoint    string
	SecureTokenEndpoint string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnv("PORT", "8080"),
		FirebaseProjectID:     getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:        getEnv("FIREBASE_API_KEY", ""),
		FirebaseDatabaseURL:   getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseStorageBucket: getEnv("FIREBASE_STORAGE_BUCKET", ""),
		FirebaseCredentials:   getEnv("FIREBASE_CREDENTIALS", ""),
		IdentityEndpoint:      getEnv("IDENTITY_ENDPOINT", "https://identitytoolkit.googleapis.com/v1"),
		SecureTokenEndpoint:   getEnv("SECURE_TOKEN_ENDPOINT", "https://securetoken.googleapis.com/v1"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
