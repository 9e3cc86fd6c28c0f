package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

// initFlags parses the command line and merges config files, then flags,
// into ko. Flags win over files.
func initFlags(ko *koanf.Koanf) {
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	f.StringSlice("config", nil, "path to one or more config files (merged in order)")
	f.String("port", "8080", "port to serve the admin API on")
	f.String("pipeline.checkpoint_dir", "", "durable root for operator state metadata")
	f.String("pipeline.data_dir", "", "directory root for the operators' state stores")
	f.Int("pipeline.shuffle_partitions", 200, "number of state store partitions")
	f.String("pipeline.backend", "badgerdb", "embedded state engine (badgerdb or boltdb)")
	f.Bool("debug", false, "enable human-readable trace logging")
	f.Bool("version", false, "show current version of the build")

	if err := f.Parse(os.Args[1:]); err != nil {
		log.Fatal().Msgf("error loading flags: %v", err)
	}

	configs, _ := f.GetStringSlice("config")
	for _, path := range configs {
		if err := loadConfigFile(ko, path); err != nil {
			log.Fatal().Str("path", path).Msgf("error reading config: %v", err)
		}
	}

	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		log.Fatal().Msgf("error reading flag config: %v", err)
	}
}

func loadConfigFile(ko *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch ext := path[strings.LastIndex(path, ".")+1:]; ext {
	case "yaml", "yml":
		parser = yaml.Parser()
	case "json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return ko.Load(file.Provider(path), parser)
}
