// Package prompt wraps collected context in the instructions sent to the
// model.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/dusk-indust/lineage/internal/config"
)

const lineageInstructions = "Analyze the following Apache Spark code and generate a full data lineage report.\n\n" +
	"Your goals:\n" +
	"1. Identify all source datasets (Hive tables, S3 files, etc.).\n" +
	"2. Describe each dataset's schema and filters.\n" +
	"3. Trace all transformations:\n" +
	"   - Filter, map, select, drop, withColumn, etc.\n" +
	"   - Joins and join types\n" +
	"   - Aggregations (groupBy, reduceByKey)\n" +
	"   - UDFs\n" +
	"4. Explain how data splits or merges during execution.\n" +
	"5. Identify the final output/sink.\n" +
	"6. Map outputs back to their original sources and transformations.\n" +
	"7. Provide Spark code examples where possible.\n" +
	"8. Generate a Mermaid diagram for visualization.\n" +
	"9. Mention any data quality or transformation risks.\n" +
	"10. If Kafka, Hive, Delta Lake are involved, explain their lineage impact.\n\n" +
	"Use clear language, number each section, and include Mermaid code at the end.\n\n" +
	"Code:\n"

// Lineage returns the built-in lineage prompt for code.
func Lineage(code string) string {
	return lineageInstructions + code
}

// UnitTest returns a prompt asking for unit tests of code under s.
func UnitTest(code string, s config.TestSettings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write unit tests in %s using %s for the following code.\n\n", s.Language, s.Framework)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "1. Target Java %s", s.JavaVersion)
	if s.SparkVersion != "" {
		fmt.Fprintf(&b, " and Apache Spark %s", s.SparkVersion)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "2. Use Mockito %s for collaborators; do not mock value types.\n", s.MockitoVersion)
	b.WriteString("3. Cover the happy path, boundary values and error handling of every public method.\n")
	b.WriteString("4. Use a local SparkSession for Dataset code and stop it after the tests.\n")
	b.WriteString("5. Keep the package of the class under test and name the class <ClassName>Test.\n")
	b.WriteString("6. Return one complete compilable test class in a single ```java block.\n\n")
	b.WriteString("Code:\n")
	b.WriteString(code)
	return b.String()
}

// Assembler renders lineage prompts, optionally from a user template.
type Assembler struct {
	tmpl *template.Template
}

// templateData is what a custom template can reference.
type templateData struct {
	Code string
}

// NewAssembler loads the template at path. An empty path selects the
// built-in instructions.
func NewAssembler(path string) (*Assembler, error) {
	if path == "" {
		return &Assembler{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read template: %w", err)
	}
	return ParseAssembler(path, string(data))
}

// ParseAssembler compiles text as a prompt template. It must reference
// {{.Code}}.
func ParseAssembler(name, text string) (*Assembler, error) {
	if !strings.Contains(text, ".Code") {
		return nil, fmt.Errorf("prompt: template %s does not reference .Code", name)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse template %s: %w", name, err)
	}
	return &Assembler{tmpl: t}, nil
}

// Lineage renders the lineage prompt for code.
func (a *Assembler) Lineage(code string) (string, error) {
	if a == nil || a.tmpl == nil {
		return Lineage(code), nil
	}
	var b strings.Builder
	if err := a.tmpl.Execute(&b, templateData{Code: code}); err != nil {
		return "", fmt.Errorf("prompt: render: %w", err)
	}
	return b.String(), nil
}
