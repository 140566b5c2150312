package commands

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is populated from PIGEON_* environment variables, optionally
// seeded from a .env file in the working directory. Flags override it.
var Config struct {
	Relay    string `default:""`
	BlobBase string `split_words:"true"`
	KeyFile  string `split_words:"true"`
}

func initConfig() error {
	// A missing .env file is fine; explicit environment still applies.
	_ = godotenv.Load()

	if err := envconfig.Process("pigeon", &Config); err != nil {
		return err
	}

	if Config.KeyFile == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return err
		}
		Config.KeyFile = filepath.Join(configDir, "pigeon", "endpoint.bin")
	}
	return nil
}
