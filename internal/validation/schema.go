// Package validation checks scoring result documents and project config
// files against the embedded JSON Schemas.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/microsoft/gridscan/internal/models"
	"github.com/microsoft/gridscan/schemas"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

var printer = message.NewPrinter(language.English)

// Validator checks decoded documents against one compiled schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

var (
	resultValidator = mustCompile("result.schema.json", schemas.ResultSchemaJSON)
	configValidator = mustCompile("config.schema.json", schemas.ConfigSchemaJSON)
)

func mustCompile(name, raw string) *Validator {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parsing embedded %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("adding %s: %v", name, err))
	}
	sch, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling %s: %v", name, err))
	}
	return &Validator{name: name, schema: sch}
}

// Validate returns one "<json pointer>: <message>" line per violated
// constraint, sorted by location. A valid document yields nil.
func (v *Validator) Validate(doc any) []string {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{fmt.Sprintf("%s: %v", v.name, err)}
	}

	var out []string
	for _, leaf := range leaves(ve) {
		out = append(out, fmt.Sprintf("%s: %s", pointer(leaf.InstanceLocation), leaf.ErrorKind.LocalizedString(printer)))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

func pointer(loc []string) string {
	return "/" + strings.Join(loc, "/")
}

// ValidateResultFile validates a result JSON file.
func ValidateResultFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}
	return ValidateResultBytes(data), nil
}

// ValidateResultBytes validates a result document. Both the bare result and
// the scoring service envelope {"status": ..., "data": ...} are accepted.
// Only structure is enforced: numeric fields may hold anything.
func ValidateResultBytes(data []byte) []string {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("JSON parse error: %v", err)}
	}
	if env, ok := doc.(map[string]any); ok {
		_, hasStatus := env["status"]
		if inner, hasData := env["data"]; hasStatus && hasData {
			doc = inner
		}
	}
	return resultValidator.Validate(doc)
}

// ValidateConfigFile validates a .gridscan.yaml file.
func ValidateConfigFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ValidateConfigBytes(data), nil
}

// ValidateConfigBytes validates YAML project config. An empty document is
// valid.
func ValidateConfigBytes(data []byte) []string {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return configValidator.Validate(jsonShape(doc))
}

// jsonShape copies YAML-decoded values into the map and slice types the
// schema validator walks.
func jsonShape(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = jsonShape(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = jsonShape(e)
		}
		return out
	}
	return v
}

// Warnings lists the soft problems of a structurally valid result: a loss
// total that is not a decimal amount, records whose score is missing or
// unreadable and risk classes outside the known set. Such records are still
// displayed, scored as 0.
func Warnings(result *models.AnalysisResult) []string {
	if result == nil {
		return nil
	}
	var out []string
	if loss := result.Summary.TotalLossCalculated; loss.Raw() != "" {
		if _, err := loss.Decimal(); err != nil {
			out = append(out, fmt.Sprintf("/summary/total_loss_calculated: unreadable amount %q", loss.Raw()))
		}
	}
	for i, r := range result.Results {
		var bad []string
		if !r.AggregateRiskScore.Valid {
			bad = append(bad, "aggregate_risk_score")
		}
		if _, ok := r.Class(); !ok {
			bad = append(bad, fmt.Sprintf("risk_class %q", r.RiskClass))
		}
		if len(bad) > 0 {
			out = append(out, fmt.Sprintf("/results/%d (%s): missing or unreadable %s", i, r.ConsumerID, strings.Join(bad, ", ")))
		}
	}
	return out
}
