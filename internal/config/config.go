package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/decktools/internal/domain"
)

// ArgumentError reports missing or invalid arguments. It is returned before
// any deck is read.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	var verrs validator.ValidationErrors
	if errors.As(e.Err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describe(fe))
		}
		return "invalid arguments: " + strings.Join(msgs, "; ")
	}
	return "invalid arguments: " + e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "notdir":
		return fmt.Sprintf("%s %q is a directory", fe.Field(), fe.Value())
	}
	return fmt.Sprintf("%s failed the %q check", fe.Field(), fe.Tag())
}

// Subtract holds the arguments of deck-subtract.
type Subtract struct {
	Minuend       string `koanf:"minuend" validate:"required"`
	Subtrahend    string `koanf:"subtrahend" validate:"required"`
	Output        string `koanf:"output" validate:"required,notdir"`
	RawFieldMatch bool   `koanf:"raw-field-match"`
}

// Migrate holds the arguments of migrate-progress.
type Migrate struct {
	Old          string `koanf:"old" validate:"required"`
	New          string `koanf:"new" validate:"required"`
	Output       string `koanf:"output" validate:"required,notdir"`
	Primary      *int   `koanf:"old-primary" validate:"required,min=0"`
	Character    *int   `koanf:"old-character" validate:"required,min=0"`
	Auxiliary    int    `koanf:"old-auxiliary" validate:"min=-1"`
	RawSortField bool   `koanf:"raw-sort-field"`
	Progress     bool   `koanf:"progress"`
}

// Roles returns the validated role-to-ordinal map.
func (m *Migrate) Roles() domain.RoleMap {
	return domain.RoleMap{
		Primary:   *m.Primary,
		Character: *m.Character,
		Auxiliary: m.Auxiliary,
	}
}

// RegisterSubtractFlags defines the flags of deck-subtract on fs.
func RegisterSubtractFlags(fs *pflag.FlagSet) {
	fs.Bool("raw-field-match", false, "also remove notes whose raw fields contain a subtrahend sort field after a '>' marker (may over-match)")
}

// RegisterMigrateFlags defines the flags of migrate-progress on fs.
func RegisterMigrateFlags(fs *pflag.FlagSet) {
	fs.Int("old-primary", 0, "ordinal of the English card in the old deck's card types (required)")
	fs.Int("old-character", 0, "ordinal of the Chinese character card in the old deck's card types (required)")
	fs.Int("old-auxiliary", domain.RoleAbsent, "ordinal of the pinyin card in the old deck's card types, -1 if absent")
	fs.Bool("raw-sort-field", false, "derive old sort fields from the raw note fields instead of the stored value")
	fs.Bool("progress", false, "show a progress bar while applying updates")
}

// LoadSubtract merges the config file, changed flags and positional
// arguments MINUEND SUBTRAHEND OUTPUT.
func LoadSubtract(fs *pflag.FlagSet, configPath string, args []string) (*Subtract, error) {
	cfg := &Subtract{}
	positional := []string{"minuend", "subtrahend", "output"}
	if err := load(fs, configPath, positional, args, nil, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMigrate merges the config file, changed flags and positional
// arguments OLD NEW OUTPUT.
func LoadMigrate(fs *pflag.FlagSet, configPath string, args []string) (*Migrate, error) {
	cfg := &Migrate{}
	positional := []string{"old", "new", "output"}
	defaults := map[string]any{"old-auxiliary": domain.RoleAbsent}
	if err := load(fs, configPath, positional, args, defaults, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// load applies, in increasing precedence: defaults, the YAML config file,
// flags explicitly set on the command line, and positional arguments.
func load(fs *pflag.FlagSet, configPath string, positional, args []string, defaults map[string]any, out any) error {
	if len(args) != len(positional) {
		return &ArgumentError{Err: fmt.Errorf("expected %d arguments (%s), got %d",
			len(positional), strings.Join(positional, ", "), len(args))}
	}

	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return &ArgumentError{Err: fmt.Errorf("failed to read config file %s: %w", configPath, err)}
		}
	}

	// Unchanged flags are skipped so their zero defaults neither mask
	// missing required values nor override the config file.
	changed := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		if !f.Changed {
			return "", nil
		}
		return f.Name, posflag.FlagVal(fs, f)
	})
	if err := k.Load(changed, nil); err != nil {
		return &ArgumentError{Err: fmt.Errorf("failed to read flags: %w", err)}
	}

	for i, key := range positional {
		if err := k.Set(key, args[i]); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	if err := k.Unmarshal("", out); err != nil {
		return &ArgumentError{Err: fmt.Errorf("failed to decode arguments: %w", err)}
	}

	if err := newValidator().Struct(out); err != nil {
		return &ArgumentError{Err: err}
	}
	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// Report fields by their flag or argument name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("koanf")
	})

	// The output path may not name an existing directory.
	validate.RegisterValidation("notdir", func(fl validator.FieldLevel) bool {
		info, err := os.Stat(fl.Field().String())
		if err != nil {
			return true
		}
		return !info.IsDir()
	})

	return validate
}
