package base

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hashicorp/tde/internal/errors"
	"github.com/mitchellh/cli"
	"github.com/mitchellh/go-wordwrap"
)

// This is adapted from the code in the strings package for TrimSpace
var asciiSpace = [256]uint8{'\t': 1, '\n': 1, '\v': 1, '\f': 1, '\r': 1, ' ': 1}

// MaxAttributesLength returns the length of the longest key in the map, used
// to align the values of a printed attribute block.
func MaxAttributesLength(attributesMap map[string]any) int {
	maxLength := 0
	for k := range attributesMap {
		if len(k) > maxLength {
			maxLength = len(k)
		}
	}
	return maxLength
}

func trimSpaceRight(in string) string {
	for stop := len(in); stop > 0; stop-- {
		c := in[stop-1]
		if c >= utf8.RuneSelf {
			return strings.TrimFunc(in[:stop], unicode.IsSpace)
		}
		if asciiSpace[c] == 0 {
			return in[0:stop]
		}
	}
	return ""
}

func WrapForHelpText(lines []string) string {
	var ret []string
	for _, line := range lines {
		line = trimSpaceRight(line)
		trimmed := strings.TrimSpace(line)
		diff := uint(len(line) - len(trimmed))
		wrapped := wordwrap.WrapString(trimmed, TermWidth-diff)
		splitWrapped := strings.Split(wrapped, "\n")
		for i := range splitWrapped {
			splitWrapped[i] = fmt.Sprintf("%s%s", strings.Repeat(" ", int(diff)), strings.TrimSpace(splitWrapped[i]))
		}
		ret = append(ret, strings.Join(splitWrapped, "\n"))
	}

	return strings.Join(ret, "\n")
}

func WrapSlice(prefixSpaces int, input []string) string {
	var ret []string
	for _, v := range input {
		ret = append(ret, fmt.Sprintf("%s%s",
			strings.Repeat(" ", prefixSpaces),
			v,
		))
	}

	return strings.Join(ret, "\n")
}

func WrapMap(prefixSpaces, maxLengthOverride int, input map[string]any) string {
	maxKeyLength := maxLengthOverride
	if maxKeyLength == 0 {
		for k := range input {
			if len(k) > maxKeyLength {
				maxKeyLength = len(k)
			}
		}
	}

	var sortedKeys []string
	for k := range input {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)

	var ret []string
	for _, k := range sortedKeys {
		v := input[k]
		spaces := maxKeyLength - len(k)
		if spaces < 0 {
			spaces = 0
		}

		vOut := fmt.Sprintf("%v", v)
		switch v.(type) {
		case map[string]any:
			buf, err := json.MarshalIndent(v, strings.Repeat(" ", prefixSpaces), "  ")
			if err != nil {
				vOut = "[Unable to Print]"
				break
			}
			bStrings := strings.Split(string(buf), "\n")
			if len(bStrings) > 0 {
				// Indent doesn't apply to the first line
				bStrings[0] = fmt.Sprintf("\n%s%s", strings.Repeat(" ", prefixSpaces), bStrings[0])
			}
			vOut = strings.Join(bStrings, "\n")
		}
		ret = append(ret, fmt.Sprintf("%s%s%s%s",
			strings.Repeat(" ", prefixSpaces),
			fmt.Sprintf("%s: ", k),
			strings.Repeat(" ", spaces),
			vOut,
		))
	}

	return strings.Join(ret, "\n")
}

// PrintKmsError prints the given key management error, optionally with
// context information, to the UI in the appropriate format.
func (c *Command) PrintKmsError(err error, contextStr string) {
	var domainErr *errors.Err
	if !stderrors.As(err, &domainErr) {
		c.PrintCliError(err)
		return
	}

	switch Format(c.UI) {
	case "json":
		output := struct {
			Context string `json:"context,omitempty"`
			Code    string `json:"code"`
			Kind    string `json:"kind"`
			Op      string `json:"op,omitempty"`
			Error   string `json:"error"`
		}{
			Context: contextStr,
			Code:    domainErr.Code.String(),
			Kind:    domainErr.Info().Kind.String(),
			Op:      string(domainErr.Op),
			Error:   err.Error(),
		}
		b, _ := JsonFormatter{}.Format(output)
		c.UI.Error(string(b))

	default:
		nonAttributeMap := map[string]any{
			"Code":    domainErr.Code.String(),
			"Kind":    domainErr.Info().Kind.String(),
			"Message": err.Error(),
		}
		if domainErr.Op != "" {
			nonAttributeMap["Operation"] = string(domainErr.Op)
		}

		maxLength := MaxAttributesLength(nonAttributeMap)

		var output []string
		if contextStr != "" {
			output = append(output, contextStr)
		}
		output = append(output,
			"",
			"Error information:",
			WrapMap(2, maxLength+2, nonAttributeMap),
		)

		c.UI.Error(WrapForHelpText(output))
	}
}

// PrintCliError prints the given CLI error to the UI in the appropriate format
func (c *Command) PrintCliError(err error) {
	switch Format(c.UI) {
	case "json":
		output := struct {
			Error string `json:"error"`
		}{
			Error: err.Error(),
		}
		b, _ := JsonFormatter{}.Format(output)
		c.UI.Error(string(b))
	default:
		c.UI.Error(err.Error())
	}
}

// PrintJsonItem prints the given item to the UI in our common JSON format
func (c *Command) PrintJsonItem(item any) bool {
	output := struct {
		Item any `json:"item"`
	}{
		Item: item,
	}
	b, err := JsonFormatter{}.Format(output)
	if err != nil {
		c.PrintCliError(fmt.Errorf("Error formatting as JSON: %w", err))
		return false
	}
	c.UI.Output(string(b))
	return true
}

// PrintJsonItems prints the given items to the UI in our common JSON format
func (c *Command) PrintJsonItems(items any) bool {
	output := struct {
		Items any `json:"items"`
	}{
		Items: items,
	}
	b, err := JsonFormatter{}.Format(output)
	if err != nil {
		c.PrintCliError(fmt.Errorf("Error formatting as JSON: %w", err))
		return false
	}
	c.UI.Output(string(b))
	return true
}

// An output formatter for json output of an object
type JsonFormatter struct{}

func (j JsonFormatter) Format(data any) ([]byte, error) {
	return json.Marshal(data)
}

func Format(ui cli.Ui) string {
	switch t := ui.(type) {
	case *TdeUI:
		return t.Format
	}

	format := os.Getenv(EnvTdeCLIFormat)
	if format == "" {
		format = "table"
	}

	return format
}
