package base

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/posener/complete"
)

// FlagExample is an interface which declares an example value for a flag,
// printed as -name=<example> in help output.
type FlagExample interface {
	Example() string
}

// FlagVisibility is an interface which declares whether a flag should be
// hidden from help and autocompletions.
type FlagVisibility interface {
	Hidden() bool
}

// -- StringVar and stringValue
type StringVar struct {
	Name       string
	Aliases    []string
	Usage      string
	Default    string
	Hidden     bool
	EnvVar     string
	Target     *string
	Completion complete.Predictor
}

func (f *FlagSet) StringVar(i *StringVar) {
	initial := i.Default
	if v, exist := os.LookupEnv(i.EnvVar); exist {
		initial = v
	}

	def := ""
	if i.Default != "" {
		def = i.Default
	}

	f.VarFlag(&VarFlag{
		Name:       i.Name,
		Aliases:    i.Aliases,
		Usage:      i.Usage,
		Default:    def,
		EnvVar:     i.EnvVar,
		Value:      newStringValue(initial, i.Target, i.Hidden),
		Completion: i.Completion,
	})
}

type stringValue struct {
	hidden bool
	target *string
}

func newStringValue(def string, target *string, hidden bool) *stringValue {
	*target = def
	return &stringValue{
		hidden: hidden,
		target: target,
	}
}

func (s *stringValue) Set(val string) error {
	*s.target = val
	return nil
}

func (s *stringValue) Get() any        { return *s.target }
func (s *stringValue) String() string  { return *s.target }
func (s *stringValue) Example() string { return "string" }
func (s *stringValue) Hidden() bool    { return s.hidden }

// -- BoolVar and boolValue
type BoolVar struct {
	Name    string
	Aliases []string
	Usage   string
	Default bool
	Hidden  bool
	EnvVar  string
	Target  *bool
}

func (f *FlagSet) BoolVar(i *BoolVar) {
	initial := i.Default
	if v, exist := os.LookupEnv(i.EnvVar); exist {
		b, err := strconv.ParseBool(v)
		if err == nil {
			initial = b
		}
	}

	def := ""
	if i.Default {
		def = "true"
	}

	f.VarFlag(&VarFlag{
		Name:       i.Name,
		Aliases:    i.Aliases,
		Usage:      i.Usage,
		Default:    def,
		EnvVar:     i.EnvVar,
		Value:      newBoolValue(initial, i.Target, i.Hidden),
		Completion: complete.PredictNothing,
	})
}

type boolValue struct {
	hidden bool
	target *bool
}

func newBoolValue(def bool, target *bool, hidden bool) *boolValue {
	*target = def
	return &boolValue{
		hidden: hidden,
		target: target,
	}
}

func (b *boolValue) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}

	*b.target = v
	return nil
}

func (b *boolValue) Get() any         { return *b.target }
func (b *boolValue) String() string   { return strconv.FormatBool(*b.target) }
func (b *boolValue) Example() string  { return "" }
func (b *boolValue) Hidden() bool     { return b.hidden }
func (b *boolValue) IsBoolFlag() bool { return true }

// -- Uint32Var and uint32Value
type Uint32Var struct {
	Name       string
	Aliases    []string
	Usage      string
	Default    uint32
	Hidden     bool
	EnvVar     string
	Target     *uint32
	Completion complete.Predictor
}

func (f *FlagSet) Uint32Var(i *Uint32Var) {
	initial := i.Default
	if v, exist := os.LookupEnv(i.EnvVar); exist {
		if p, err := strconv.ParseUint(v, 0, 32); err == nil {
			initial = uint32(p)
		}
	}

	def := ""
	if i.Default != 0 {
		def = strconv.FormatUint(uint64(i.Default), 10)
	}

	f.VarFlag(&VarFlag{
		Name:       i.Name,
		Aliases:    i.Aliases,
		Usage:      i.Usage,
		Default:    def,
		EnvVar:     i.EnvVar,
		Value:      newUint32Value(initial, i.Target, i.Hidden),
		Completion: i.Completion,
	})
}

type uint32Value struct {
	hidden bool
	target *uint32
}

func newUint32Value(def uint32, target *uint32, hidden bool) *uint32Value {
	*target = def
	return &uint32Value{
		hidden: hidden,
		target: target,
	}
}

func (u *uint32Value) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}

	*u.target = uint32(v)
	return nil
}

func (u *uint32Value) Get() any        { return *u.target }
func (u *uint32Value) String() string  { return strconv.FormatUint(uint64(*u.target), 10) }
func (u *uint32Value) Example() string { return "uint32" }
func (u *uint32Value) Hidden() bool    { return u.hidden }

// VarFlag is a flag with a backing flag.Value, the lowest common
// denominator the typed *Var helpers reduce to.
type VarFlag struct {
	Name       string
	Aliases    []string
	Usage      string
	Default    string
	EnvVar     string
	Value      flag.Value
	Completion complete.Predictor
}

func (f *FlagSet) VarFlag(i *VarFlag) {
	// If the flag is marked as hidden, just add it to the set and return to
	// avoid unnecessary computations here. We do not want to add completions
	// or extra help text for hidden flags.
	if v, ok := i.Value.(FlagVisibility); ok && v.Hidden() {
		f.Var(i.Value, i.Name, i.Usage)
		return
	}

	// Calculate the full usage
	usage := i.Usage

	if len(i.Aliases) > 0 {
		sentence := make([]string, len(i.Aliases))
		for idx, a := range i.Aliases {
			sentence[idx] = fmt.Sprintf("-%s", a)
		}
		aliases := ""
		switch len(sentence) {
		case 1:
			aliases = sentence[0]
		case 2:
			aliases = sentence[0] + " and " + sentence[1]
		default:
			sentence[len(sentence)-1] = "and " + sentence[len(sentence)-1]
			aliases = strings.Join(sentence, ", ")
		}
		usage += fmt.Sprintf(" This is aliased as %s.", aliases)
	}

	if i.Default != "" {
		usage += fmt.Sprintf(" The default is %s.", i.Default)
	}

	if i.EnvVar != "" {
		usage += fmt.Sprintf(" This can also be specified via the %s "+
			"environment variable.", i.EnvVar)
	}

	// Add aliases to the main set
	for _, a := range i.Aliases {
		f.mainSet.Var(i.Value, a, "")
	}

	f.Var(i.Value, i.Name, usage)
	f.completions["-"+i.Name] = i.Completion
}

// Var is a lower-level API for adding something to the flags. It should be
// used with caution, since it bypasses all validation. Consider VarFlag
// instead.
func (f *FlagSet) Var(value flag.Value, name, usage string) {
	f.mainSet.Var(value, name, usage)
	f.flagSet.Var(value, name, usage)
}
