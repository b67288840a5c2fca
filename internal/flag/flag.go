// Copyright 2018 The gg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flag provides a command-line flag parser.  Unlike the Go
// standard library flag package, it permits flags to be interspersed
// with arguments and it can print help for subcommands.
package flag

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// A FlagSet represents a set of defined flags.
type FlagSet struct {
	usage       string
	description string

	flags   map[string]*flag
	aliases map[string]string
	args    []string
	argStop bool
}

type flag struct {
	name     string
	usage    string
	value    Value
	defValue string
	aliases  []string
}

// NewFlagSet returns a new, empty flag set with the specified
// intersperse behavior and help text. usage is a one-line synopsis of
// the command and description is printed below it by Help.
func NewFlagSet(intersperse bool, usage, description string) *FlagSet {
	return &FlagSet{
		usage:       usage,
		description: description,
		argStop:     !intersperse,
	}
}

// Bool defines a bool flag with specified name, default value, and
// usage string.  The return value is the address of a bool variable
// that stores the value of the flag.
func (f *FlagSet) Bool(name string, value bool, usage string) *bool {
	f.Var((*boolValue)(&value), name, usage)
	return &value
}

// String defines a string flag with specified name, default value, and
// usage string.  The return value is the address of a string variable
// that stores the value of the flag.
func (f *FlagSet) String(name string, value string, usage string) *string {
	f.Var((*stringValue)(&value), name, usage)
	return &value
}

// Int defines an int flag with specified name, default value, and
// usage string.
func (f *FlagSet) Int(name string, value int, usage string) *int {
	f.Var((*intValue)(&value), name, usage)
	return &value
}

// MultiString defines a string flag that can be given multiple times.
// Each occurrence appends to the returned slice.
func (f *FlagSet) MultiString(name string, usage string) *[]string {
	p := new([]string)
	f.Var((*multiStringValue)(p), name, usage)
	return p
}

// Var defines a flag with the specified name and usage string.
func (f *FlagSet) Var(value Value, name string, usage string) {
	if f.lookup(name) != nil {
		panic("flag redefined: " + name)
	}
	if f.flags == nil {
		f.flags = make(map[string]*flag)
	}
	f.flags[name] = &flag{
		name:     name,
		usage:    usage,
		value:    value,
		defValue: value.String(),
	}
}

// Alias adds alternate names for the flag named name. It panics if name
// has not been defined or an alias conflicts with another flag.
func (f *FlagSet) Alias(name string, aliases ...string) {
	ff := f.flags[name]
	if ff == nil {
		panic("alias for undefined flag: " + name)
	}
	for _, a := range aliases {
		if f.lookup(a) != nil {
			panic("flag redefined: " + a)
		}
		if f.aliases == nil {
			f.aliases = make(map[string]string)
		}
		f.aliases[a] = name
		ff.aliases = append(ff.aliases, a)
	}
}

func (f *FlagSet) lookup(name string) *flag {
	if ff := f.flags[name]; ff != nil {
		return ff
	}
	if canon, ok := f.aliases[name]; ok {
		return f.flags[canon]
	}
	return nil
}

// Parse parses flag definitions from the argument list, which should
// not include the command name.  Must be called after all flags in the
// FlagSet are defined and before flags are accessed by the program.
// The returned error can be tested with IsHelp if -help or -h were set
// but not defined.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = make([]string, 0, len(arguments))
	i := 0
flags:
	for ; i < len(arguments); i++ {
		a := arguments[i]
		var name, val string
		var hasval bool
		switch {
		case a == "--":
			i++
			break flags
		case strings.HasPrefix(a, "--"):
			name, val, hasval = split(a[2:])
		case a == "-":
			if f.argStop {
				break flags
			}
			f.args = append(f.args, a)
			continue
		case strings.HasPrefix(a, "-"):
			name, val, hasval = split(a[1:])
		default:
			if f.argStop {
				break flags
			}
			f.args = append(f.args, a)
			continue
		}
		ff := f.lookup(name)
		if ff == nil {
			if name == "h" || name == "help" {
				return errHelp
			}
			return fmt.Errorf("flag provided but not defined: -%s", name)
		}
		if !hasval {
			if ff.value.IsBoolFlag() {
				val = "true"
			} else if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: -%s", name)
			} else {
				i++
				val = arguments[i]
			}
		}
		if err := ff.value.Set(val); err != nil {
			return fmt.Errorf("invalid value %q for flag -%s: %v", val, name, err)
		}
	}
	f.args = append(f.args, arguments[i:]...)
	return nil
}

func split(f string) (name, value string, hasValue bool) {
	name, value, hasValue = strings.Cut(f, "=")
	return
}

// Args returns the non-flag arguments.
func (f *FlagSet) Args() []string {
	return f.args[:len(f.args):len(f.args)]
}

// NArg returns the number of non-flag arguments.
func (f *FlagSet) NArg() int {
	return len(f.args)
}

// Arg returns the i'th argument. Arg(0) is the first non-flag argument.
// Arg returns an empty string if the requested element does not exist.
func (f *FlagSet) Arg(i int) string {
	if i < 0 || i >= len(f.args) {
		return ""
	}
	return f.args[i]
}

// Help prints the usage line, the description, and the defined flags
// to w.
func (f *FlagSet) Help(w io.Writer) {
	sb := new(strings.Builder)
	sb.WriteString("usage: ")
	sb.WriteString(f.usage)
	sb.WriteString("\n")
	if f.description != "" {
		sb.WriteString("\n")
		sb.WriteString(f.description)
		sb.WriteString("\n")
	}
	if len(f.flags) > 0 {
		sb.WriteString("\noptions:\n\n")
		names := make([]string, 0, len(f.flags))
		for name := range f.flags {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			f.flags[name].writeHelp(sb)
		}
	}
	io.WriteString(w, sb.String())
}

func (ff *flag) writeHelp(sb *strings.Builder) {
	argName, usage := unquoteUsage(ff)
	for i, name := range append([]string{ff.name}, ff.aliases...) {
		if i == 0 {
			sb.WriteString("  ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString("-")
		sb.WriteString(name)
		if argName != "" {
			sb.WriteString(" ")
			sb.WriteString(argName)
		}
	}
	sb.WriteString("\n    \t")
	sb.WriteString(strings.ReplaceAll(usage, "\n", "\n    \t"))
	if ff.defValue != "" && ff.defValue != "false" && ff.defValue != "0" {
		if _, isString := ff.value.(*stringValue); isString {
			fmt.Fprintf(sb, " (default %q)", ff.defValue)
		} else {
			fmt.Fprintf(sb, " (default %s)", ff.defValue)
		}
	}
	sb.WriteString("\n")
}

// unquoteUsage extracts a back-quoted name from the usage string for a
// flag and returns it and the un-quoted usage.
func unquoteUsage(ff *flag) (name string, usage string) {
	usage = ff.usage
	if start := strings.IndexByte(usage, '`'); start != -1 {
		if n := strings.IndexByte(usage[start+1:], '`'); n != -1 {
			end := start + 1 + n
			name = usage[start+1 : end]
			usage = usage[:start] + name + usage[end+1:]
			return name, usage
		}
	}
	if ff.value.IsBoolFlag() {
		return "", usage
	}
	switch ff.value.(type) {
	case *intValue:
		return "int", usage
	default:
		return "string", usage
	}
}

// Value is the interface to the dynamic value stored in a flag.
type Value interface {
	// String presents the current value as a string.
	String() string

	// Set is called once, in command line order, for each flag present.
	Set(string) error

	// Get returns the contents of the Value.
	Get() interface{}

	// If IsBoolFlag returns true, then the command-line parser makes
	// -name equivalent to -name=true rather than using the next
	// command-line argument.
	IsBoolFlag() bool
}

type boolValue bool

func (b *boolValue) String() string {
	return strconv.FormatBool(bool(*b))
}

func (b *boolValue) Set(s string) error {
	v, err := strconv.ParseBool(s)
	*b = boolValue(v)
	return err
}

func (b *boolValue) Get() interface{} {
	return bool(*b)
}

func (b *boolValue) IsBoolFlag() bool {
	return true
}

type stringValue string

func (s *stringValue) String() string {
	return string(*s)
}

func (s *stringValue) Set(v string) error {
	*s = stringValue(v)
	return nil
}

func (s *stringValue) Get() interface{} {
	return string(*s)
}

func (s *stringValue) IsBoolFlag() bool {
	return false
}

type intValue int

func (i *intValue) String() string {
	return strconv.Itoa(int(*i))
}

func (i *intValue) Set(s string) error {
	v, err := strconv.ParseInt(s, 0, strconv.IntSize)
	if err != nil {
		return errors.New("parse error")
	}
	*i = intValue(v)
	return nil
}

func (i *intValue) Get() interface{} {
	return int(*i)
}

func (i *intValue) IsBoolFlag() bool {
	return false
}

type multiStringValue []string

func (m *multiStringValue) String() string {
	return strings.Join(*m, ",")
}

func (m *multiStringValue) Set(s string) error {
	*m = append(*m, s)
	return nil
}

func (m *multiStringValue) Get() interface{} {
	return []string(*m)
}

func (m *multiStringValue) IsBoolFlag() bool {
	return false
}

// IsHelp reports true if e indicates that -help or -h was invoked but
// no such flag is defined.
func IsHelp(e error) bool {
	return e == errHelp
}

var errHelp = errors.New("flag: help requested")
