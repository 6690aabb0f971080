package config

import "time"

// Lookup configures the barcode to product name providers.
type Lookup struct {
	FoodSafetyBaseURL string        `env:"LOOKUP_FOODSAFETY_BASE_URL" envDefault:"http://openapi.foodsafetykorea.go.kr/api"`
	FoodSafetyAPIKey  string        `env:"LOOKUP_FOODSAFETY_API_KEY,required"`
	Providers         []string      `env:"LOOKUP_PROVIDERS" envDefault:"C005,I2570" envSeparator:","`
	Timeout           time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"3s"`
}
