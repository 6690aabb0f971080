package config

import "time"

type ImageSearch struct {
	BaseURL      string        `env:"IMAGE_SEARCH_BASE_URL" envDefault:"https://openapi.naver.com"`
	ClientID     string        `env:"IMAGE_SEARCH_CLIENT_ID,required"`
	ClientSecret string        `env:"IMAGE_SEARCH_CLIENT_SECRET,required"`
	Timeout      time.Duration `env:"IMAGE_SEARCH_TIMEOUT" envDefault:"3s"`
}

type ImageFetch struct {
	Timeout  time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"5s"`
	MaxBytes int64         `env:"IMAGE_FETCH_MAX_BYTES" envDefault:"10485760"`
	// MaxPixels bounds the declared width*height, checked before decoding.
	MaxPixels int64 `env:"IMAGE_FETCH_MAX_PIXELS" envDefault:"40000000"`
}
