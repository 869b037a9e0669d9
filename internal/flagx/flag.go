// Package flagx holds the small amount of argument plumbing shared by the
// three WhistleDrop binaries: every program layers defaults, an optional JSON
// file and command-line flags, and each layer only looks at its own flags.
package flagx

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNotPositive is returned for zero or negative flag values.
var ErrNotPositive = errors.New("value must be positive")

// FilterArgs keeps only the flags named in allowedFlags (and their values)
// from args, preserving order. Both "-c conf.json" and "-c=conf.json" forms
// are recognised; a following token that starts with "-" is never taken as a
// value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// JsonConfigFlags returns the value of -c / -config from os.Args, or "" when
// neither is given. Other flags are ignored.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}

// Subcommand returns the first positional argument of args and everything
// after it. Flags that precede the subcommand are skipped together with
// their values, so "-c conf.json fetch -v" yields ("fetch", ["-v"]).
func Subcommand(args []string, valueFlags []string) (string, []string) {
	takesValue := make(map[string]struct{}, len(valueFlags))
	for _, f := range valueFlags {
		takesValue[f] = struct{}{}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return arg, args[i+1:]
		}
		if _, ok := takesValue[arg]; ok && i+1 < len(args) {
			i++
		}
	}
	return "", nil
}

// DurationValue is a flag.Value writing a positive duration to Target. A
// bare integer is counted in Unit, anything else goes through
// time.ParseDuration. Target is only touched when the flag is given.
type DurationValue struct {
	Target *time.Duration
	Unit   time.Duration
}

func (d DurationValue) String() string {
	if d.Target == nil {
		return ""
	}
	return d.Target.String()
}

func (d DurationValue) Set(s string) error {
	v, err := ParseDuration(s, d.Unit)
	if err != nil {
		return err
	}
	*d.Target = v
	return nil
}

// ParseDuration reads s as a count of unit or as a Go duration string and
// rejects results that are not positive.
func ParseDuration(s string, unit time.Duration) (time.Duration, error) {
	var v time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		v = time.Duration(n) * unit
	} else {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return 0, perr
		}
		v = parsed
	}
	if v <= 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrNotPositive)
	}
	return v, nil
}

// PositiveInt64 parses s as an integer greater than zero.
func PositiveInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrNotPositive)
	}
	return n, nil
}
