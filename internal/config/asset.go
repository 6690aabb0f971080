package config

type Asset struct {
	Dir     string `env:"ASSET_DIR" envDefault:"./data/pictures"`
	BaseURL string `env:"ASSET_BASE_URL" envDefault:"/api/v1/pictures"`
}
