package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Struct-tag driven configuration: flags first, optional INI file
// underneath. Tags: name, alias (comma separated), default, help,
// required.

func CheckVersion(version string) {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" {
			fmt.Println(version)
			os.Exit(0)
		}
	}
}

type fieldInfo struct {
	field        reflect.Value
	name         string
	aliases      []string
	help         string
	isRequired   bool
	defaultValue string
}

func Load(cfg interface{}, args []string) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cfg must be a pointer to a struct")
	}
	v = v.Elem()
	t := v.Type()

	fields := parseStructTags(v, t)

	for i := range fields {
		f := &fields[i]
		if f.defaultValue != "" {
			if err := setField(f.field, f.defaultValue); err != nil {
				return fmt.Errorf("bad default for %s: %w", f.name, err)
			}
		}
	}

	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to config file")

	flagValues := make(map[string]*string)
	for i := range fields {
		f := &fields[i]
		ptr := new(string)
		fs.StringVar(ptr, f.name, "", f.help)
		flagValues[f.name] = ptr
		for _, alias := range f.aliases {
			fs.StringVar(ptr, alias, "", f.help)
		}
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		return err
	}

	if configPath == "" {
		if _, err := os.Stat("./config.ini"); err == nil {
			configPath = "./config.ini"
		}
	}

	if configPath != "" {
		if err := loadINI(configPath, fields); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	seen := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { seen[fl.Name] = true })
	for i := range fields {
		f := &fields[i]
		set := seen[f.name]
		for _, alias := range f.aliases {
			set = set || seen[alias]
		}
		if !set {
			continue
		}
		if err := setField(f.field, *flagValues[f.name]); err != nil {
			return fmt.Errorf("bad value for --%s: %w", f.name, err)
		}
	}

	for i := range fields {
		f := &fields[i]
		if f.isRequired && f.field.IsZero() {
			return fmt.Errorf("required option missing: --%s", f.name)
		}
	}

	return nil
}

func parseStructTags(v reflect.Value, t reflect.Type) []fieldInfo {
	var fields []fieldInfo

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		fv := v.Field(i)

		if !fv.CanSet() {
			continue
		}

		name := sf.Tag.Get("name")
		if name == "" {
			name = toKebabCase(sf.Name)
		}

		var aliases []string
		if aliasTag := sf.Tag.Get("alias"); aliasTag != "" {
			for _, a := range strings.Split(aliasTag, ",") {
				aliases = append(aliases, strings.TrimSpace(a))
			}
		}

		fields = append(fields, fieldInfo{
			field:        fv,
			name:         name,
			aliases:      aliases,
			help:         sf.Tag.Get("help"),
			isRequired:   sf.Tag.Get("required") == "true",
			defaultValue: sf.Tag.Get("default"),
		})
	}

	return fields
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		field.SetBool(ParseBool(value))
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			dur, err := time.ParseDuration(value)
			if err != nil {
				// Bare numbers are milliseconds.
				ms, merr := strconv.Atoi(value)
				if merr != nil {
					return fmt.Errorf("invalid duration: %s", value)
				}
				dur = time.Duration(ms) * time.Millisecond
			}
			field.SetInt(int64(dur))
			return nil
		}
		val, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		field.SetInt(val)
	case reflect.Uint32, reflect.Uint64:
		val, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %s", value)
		}
		field.SetUint(val)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(item)
			if trimmed != "" {
				items = append(items, trimmed)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

func toKebabCase(name string) string {
	var out []byte
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '-')
			}
			out = append(out, c-'A'+'a')
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}

func ParseBool(value string) bool {
	value = strings.ToLower(value)
	return value == "true" || value == "yes" || value == "1" || value == "on"
}
