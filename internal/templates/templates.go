package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed files/*
var TplFS embed.FS

// ExperimentTpl scaffolds an experiment file for `maggot init`.
const ExperimentTpl = "files/experiment.yml.tmpl"

// WriteTpl loads tplName from tplFS, executes it with data, and writes to outPath
func WriteTpl(tplName, outPath string, data any) error {
	return WriteTplWithFuncs(tplName, outPath, data, nil)
}

// WriteTplWithFuncs loads tplName, adds funcs to the template, executes, and writes.
func WriteTplWithFuncs(tplName, outPath string, data any, funcMap template.FuncMap) error {
	t := template.New(filepath.Base(tplName)).Option("missingkey=error")

	if funcMap != nil {
		t = t.Funcs(funcMap)
	}

	t, err := t.ParseFS(TplFS, tplName)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", tplName, err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outPath, err)
	}

	if err := t.Execute(f, data); err != nil {
		f.Close()
		return fmt.Errorf("failed to render template %s: %w", tplName, err)
	}
	return f.Close()
}
