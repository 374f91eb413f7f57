package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"pcode/pkg/interpreter"

	"github.com/naoina/toml"
)

// Config is the run configuration file. Keys use the Go field names.
type Config struct {
	Run     RunConfig
	Logging LogConfig
}

type RunConfig struct {
	Step     bool  // start paused, one statement per step
	Speed    int   // delay between statements in milliseconds (0 = no delay)
	MaxSteps int   // statement budget per run (0 = unlimited)
	MaxDepth int   // procedure call depth limit
	Seed     int64 // RANDOM seed (0 = seeded from the clock)
}

type LogConfig struct {
	Verbose bool
	NoColor bool
}

// Default is the configuration used when no file is given.
var Default = Config{
	Run: RunConfig{
		MaxDepth: interpreter.DefaultMaxDepth,
	},
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Load reads file over a copy of Default.
func Load(file string) (Config, error) {
	cfg := Default

	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return cfg, err
}

// Dump writes cfg in the format Load reads.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
