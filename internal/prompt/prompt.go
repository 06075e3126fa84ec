// Package prompt renders the instruction sent to the language model.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const taskTemplate = "task.tmpl"

// Data is what the task template renders.
type Data struct {
	Fields      []string
	Instruction string
}

// Builder renders the task prompt. It is safe for concurrent use: every
// Build call renders into its own buffer.
type Builder struct {
	tmpl *template.Template
}

// NewBuilder parses the embedded template. A parse failure is a build
// defect, so it panics.
func NewBuilder() *Builder {
	tmpl, err := template.New(taskTemplate).
		Funcs(template.FuncMap{
			"join":  strings.Join,
			"quote": strconv.Quote,
		}).
		ParseFS(templateFS, "templates/"+taskTemplate)
	if err != nil {
		panic(fmt.Sprintf("prompt: parse %s: %v", taskTemplate, err))
	}
	return &Builder{tmpl: tmpl}
}

// Build returns the prompt for userText given the tenant's custom fields.
// The result depends only on its inputs.
func (b *Builder) Build(fields []string, userText string) string {
	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, Data{Fields: fields, Instruction: userText}); err != nil {
		// Unreachable for string inputs.
		panic(fmt.Sprintf("prompt: render %s: %v", taskTemplate, err))
	}
	return buf.String()
}
