// Package rules loads and validates the YAML rules file that tells the
// folder comparison which files to compare and how.
//
// A rules file holds a list of rules. Each rule selects files with a
// doublestar include pattern (and an optional exclude pattern) and carries
// exactly one comparator section:
//
//	rules:
//	  - name: "csv tables"
//	    pattern_include: "**/*.csv"
//	    CSV:
//	      comparison_modes: [{Absolute: 0.01}, {Relative: 0.1}]
//	      preprocessing: [ExtractHeaders, {DeleteColumnByName: "Time"}]
//	  - name: "binaries"
//	    pattern_include: "**/*.bin"
//	    Hash:
//	      function: Sha256
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/csvcompare/internal/core"
)

// ErrInvalidRules is wrapped by every load and validation failure.
var ErrInvalidRules = errors.New("invalid rules")

// Kind names the comparator a rule uses.
type Kind string

const (
	KindCSV  Kind = "CSV"
	KindHash Kind = "Hash"
)

// File is a parsed rules file.
type File struct {
	Rules []Rule `yaml:"rules" validate:"required,min=1,dive"`
}

// Rule selects files and configures how they are compared.
type Rule struct {
	Name           string      `yaml:"name" validate:"required"`
	PatternInclude string      `yaml:"pattern_include" validate:"required"`
	PatternExclude string      `yaml:"pattern_exclude,omitempty"`
	CSV            *CSVConfig  `yaml:"CSV,omitempty" validate:"required_without=Hash"`
	Hash           *HashConfig `yaml:"Hash,omitempty" validate:"required_without=CSV"`
}

// Kind returns the comparator kind of the rule.
func (r *Rule) Kind() Kind {
	if r.Hash != nil {
		return KindHash
	}
	return KindCSV
}

// CSVConfig configures the table comparison of one rule.
type CSVConfig struct {
	FieldDelimiter       string             `yaml:"field_delimiter,omitempty" validate:"omitempty,len=1"`
	DecimalSeparator     string             `yaml:"decimal_separator,omitempty" validate:"omitempty,len=1"`
	ComparisonModes      []ModeSpec         `yaml:"comparison_modes" validate:"required"`
	ExcludeFieldRegex    string             `yaml:"exclude_field_regex,omitempty"`
	RequireEqualRowCount bool               `yaml:"require_equal_row_count,omitempty"`
	Preprocessing        []PreprocessorSpec `yaml:"preprocessing,omitempty"`
}

// HashConfig configures a byte-exact comparison by digest.
type HashConfig struct {
	Function string `yaml:"function" validate:"required,oneof=Sha256"`
}

// ModeSpec is a comparison mode as written in YAML: "Ignore",
// {Absolute: tol} or {Relative: tol}.
type ModeSpec struct {
	core.Mode
}

// UnmarshalYAML decodes a mode from a scalar or a single-key mapping.
func (m *ModeSpec) UnmarshalYAML(node *yaml.Node) error {
	name, arg, err := variant(node)
	if err != nil {
		return err
	}

	switch name {
	case "Ignore":
		if arg != nil {
			return fmt.Errorf("line %d: Ignore takes no tolerance", node.Line)
		}
		m.Mode = core.Ignore{}
		return nil
	case "Absolute", "Relative":
		if arg == nil {
			return fmt.Errorf("line %d: %s needs a tolerance", node.Line, name)
		}
		var tol float32
		if err := arg.Decode(&tol); err != nil {
			return fmt.Errorf("line %d: %s tolerance: %w", arg.Line, name, err)
		}
		if name == "Absolute" {
			m.Mode = core.Absolute(tol)
		} else {
			m.Mode = core.Relative(tol)
		}
		return nil
	}
	return fmt.Errorf("line %d: unknown comparison mode %q", node.Line, name)
}

// PreprocessorSpec is a preprocessing step as written in YAML:
// "ExtractHeaders" or a single-key mapping such as {DeleteColumnByName: "Time"}.
type PreprocessorSpec struct {
	core.Preprocessor
}

// UnmarshalYAML decodes a preprocessor from a scalar or a single-key mapping.
func (p *PreprocessorSpec) UnmarshalYAML(node *yaml.Node) error {
	name, arg, err := variant(node)
	if err != nil {
		return err
	}

	if name == "ExtractHeaders" {
		if arg != nil {
			return fmt.Errorf("line %d: ExtractHeaders takes no argument", node.Line)
		}
		p.Preprocessor = core.ExtractHeaders{}
		return nil
	}
	if !knownPreprocessors[name] {
		return fmt.Errorf("line %d: unknown preprocessor %q", node.Line, name)
	}
	if arg == nil {
		return fmt.Errorf("line %d: %s needs an argument", node.Line, name)
	}

	var (
		text   string
		number int
	)
	switch name {
	case "DeleteColumnByName", "DeleteRowByRegex", "SortByColumnName":
		if err := arg.Decode(&text); err != nil {
			return fmt.Errorf("line %d: %s: %w", arg.Line, name, err)
		}
	case "DeleteColumnByNumber", "DeleteRowByNumber", "SortByColumnNumber":
		if err := arg.Decode(&number); err != nil {
			return fmt.Errorf("line %d: %s: %w", arg.Line, name, err)
		}
	default:
		return fmt.Errorf("line %d: unknown preprocessor %q", node.Line, name)
	}

	switch name {
	case "DeleteColumnByName":
		p.Preprocessor = core.DeleteColumnByName(text)
	case "DeleteRowByRegex":
		p.Preprocessor = core.DeleteRowByRegex(text)
	case "SortByColumnName":
		p.Preprocessor = core.SortByColumnName(text)
	case "DeleteColumnByNumber":
		p.Preprocessor = core.DeleteColumnByNumber(number)
	case "DeleteRowByNumber":
		p.Preprocessor = core.DeleteRowByNumber(number)
	case "SortByColumnNumber":
		p.Preprocessor = core.SortByColumnNumber(number)
	}
	return nil
}

var knownPreprocessors = map[string]bool{
	"DeleteColumnByNumber": true,
	"DeleteColumnByName":   true,
	"DeleteRowByNumber":    true,
	"DeleteRowByRegex":     true,
	"SortByColumnName":     true,
	"SortByColumnNumber":   true,
}

// variant splits an externally tagged enum value into its tag and payload.
func variant(node *yaml.Node) (string, *yaml.Node, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Value, nil, nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return "", nil, fmt.Errorf("line %d: expected a single key, got %d", node.Line, len(node.Content)/2)
		}
		return node.Content[0].Value, node.Content[1], nil
	}
	return "", nil, fmt.Errorf("line %d: expected a name or a single-key mapping", node.Line)
}

// CompareConfig converts the CSV section to the engine configuration.
func (c *CSVConfig) CompareConfig() core.CompareConfig {
	cfg := core.CompareConfig{
		Delimiters: core.Delimiters{
			FieldDelimiter:   firstRune(c.FieldDelimiter),
			DecimalSeparator: firstRune(c.DecimalSeparator),
		},
		ExcludeFieldRegex:    c.ExcludeFieldRegex,
		RequireEqualRowCount: c.RequireEqualRowCount,
	}
	for _, m := range c.ComparisonModes {
		cfg.Modes = append(cfg.Modes, m.Mode)
	}
	for _, p := range c.Preprocessing {
		cfg.Preprocessing = append(cfg.Preprocessing, p.Preprocessor)
	}
	return cfg
}

func firstRune(s string) rune {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// Load reads and validates a rules file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidRules, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates rules from YAML. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", ErrInvalidRules)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseCSVConfig decodes a single CSV section, as sent to the HTTP API.
func ParseCSVConfig(data []byte) (*CSVConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c CSVConfig
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	var errs []string
	if err := validate.Struct(&c); err != nil {
		errs = append(errs, formatValidationErrors(err)...)
	}
	errs = append(errs, c.check("CSV")...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w:\n  - %s", ErrInvalidRules, strings.Join(errs, "\n  - "))
	}
	return &c, nil
}

var validate = validator.New()

// Validate runs the struct tag checks and then the checks tags cannot
// express: patterns, regexes and tolerances.
func (f *File) Validate() error {
	var errs []string
	if err := validate.Struct(f); err != nil {
		errs = append(errs, formatValidationErrors(err)...)
	}

	for i := range f.Rules {
		r := &f.Rules[i]
		prefix := fmt.Sprintf("rules[%d] (%s)", i, r.Name)

		if r.PatternInclude != "" && !doublestar.ValidatePattern(r.PatternInclude) {
			errs = append(errs, fmt.Sprintf("%s: pattern_include %q is not a valid glob", prefix, r.PatternInclude))
		}
		if r.PatternExclude != "" && !doublestar.ValidatePattern(r.PatternExclude) {
			errs = append(errs, fmt.Sprintf("%s: pattern_exclude %q is not a valid glob", prefix, r.PatternExclude))
		}
		if r.CSV != nil && r.Hash != nil {
			errs = append(errs, fmt.Sprintf("%s: a rule cannot have both a CSV and a Hash section", prefix))
		}
		if r.CSV != nil {
			errs = append(errs, r.CSV.check(prefix)...)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidRules, strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *CSVConfig) check(prefix string) []string {
	var errs []string
	for _, m := range c.ComparisonModes {
		switch mode := m.Mode.(type) {
		case core.Absolute:
			if mode < 0 {
				errs = append(errs, fmt.Sprintf("%s: tolerance of %s must not be negative", prefix, mode))
			}
		case core.Relative:
			if mode < 0 {
				errs = append(errs, fmt.Sprintf("%s: tolerance of %s must not be negative", prefix, mode))
			}
		}
	}

	if c.ExcludeFieldRegex != "" {
		if _, err := regexp.Compile(c.ExcludeFieldRegex); err != nil {
			errs = append(errs, fmt.Sprintf("%s: exclude_field_regex: %v", prefix, err))
		}
	}
	for _, p := range c.Preprocessing {
		if re, ok := p.Preprocessor.(core.DeleteRowByRegex); ok {
			if _, err := regexp.Compile(string(re)); err != nil {
				errs = append(errs, fmt.Sprintf("%s: DeleteRowByRegex: %v", prefix, err))
			}
		}
	}
	return errs
}

// formatValidationErrors turns validator failures into readable lines.
func formatValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		switch fe.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "min":
			out = append(out, fmt.Sprintf("%s must have at least %s entries", field, fe.Param()))
		case "len":
			out = append(out, fmt.Sprintf("%s must be exactly %s character", field, fe.Param()))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "required_without":
			out = append(out, fmt.Sprintf("%s: a rule needs a CSV or a Hash section", field))
		default:
			out = append(out, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return out
}
