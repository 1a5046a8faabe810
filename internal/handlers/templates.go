package handlers

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"
)

// TemplateExecutor is an interface for template execution
// This allows both *template.Template and custom template registries to be used
type TemplateExecutor interface {
	ExecuteTemplate(wr io.Writer, name string, data interface{}) error
}

// TemplateRegistry holds separate template instances for each page
type TemplateRegistry struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

func NewTemplateRegistry(funcMap template.FuncMap) *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]*template.Template),
		funcMap:   funcMap,
	}
}

func (tr *TemplateRegistry) Add(name string, tmpl *template.Template) {
	tr.templates[name] = tmpl
}

func (tr *TemplateRegistry) ExecuteTemplate(w io.Writer, name string, data interface{}) error {
	tmpl, ok := tr.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	return tmpl.ExecuteTemplate(w, name, data)
}

// LoadTemplates parses templatesDir/{layouts,partials,pages}. Every page gets
// its own set containing the layouts and partials.
func LoadTemplates(templatesDir string) (*TemplateRegistry, error) {
	funcMap := template.FuncMap{
		"dict":        dict,
		"money":       formatMoney,
		"datetime":    formatDateTime,
		"date":        formatDate,
		"deref":       derefTime,
		"isAdminRole": isAdminRole,
	}

	registry := NewTemplateRegistry(funcMap)

	layoutFiles, _ := filepath.Glob(filepath.Join(templatesDir, "layouts", "*.html"))
	partialFiles, _ := filepath.Glob(filepath.Join(templatesDir, "partials", "*.html"))
	sharedFiles := append(append([]string{}, layoutFiles...), partialFiles...)

	pageFiles, err := filepath.Glob(filepath.Join(templatesDir, "pages", "*.html"))
	if err != nil {
		return nil, err
	}
	if len(pageFiles) == 0 {
		return nil, fmt.Errorf("no page templates found in %s", templatesDir)
	}

	for _, pageFile := range pageFiles {
		pageName := filepath.Base(pageFile)
		tmpl, err := parseFiles(template.New(pageName).Funcs(funcMap), append(sharedFiles, pageFile))
		if err != nil {
			return nil, err
		}
		registry.Add(pageName, tmpl)
	}

	return registry, nil
}

func parseFiles(tmpl *template.Template, files []string) (*template.Template, error) {
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := tmpl.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
	}
	return tmpl, nil
}

func dict(values ...interface{}) map[string]interface{} {
	if len(values)%2 != 0 {
		return nil
	}
	d := make(map[string]interface{}, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil
		}
		d[key] = values[i+1]
	}
	return d
}

func formatMoney(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func isAdminRole(role interface{}) bool {
	return fmt.Sprint(role) == "admin"
}
