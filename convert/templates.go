package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"github.com/devknoll/container-query-polyfill/config"
)

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Kind       string
	SourceFile string
	SourceDir  string
	Containers int
	Extension  string
}

func buildValues(src, kind, ext string, containers int) Values {
	dir := filepath.ToSlash(filepath.Dir(src))
	if dir == "." {
		dir = ""
	}
	return Values{
		Kind:       kind,
		SourceFile: strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		SourceDir:  dir,
		Containers: containers,
		Extension:  strings.TrimPrefix(ext, "."),
	}
}

func expandTemplate(values Values, name config.TemplateFieldName, field string) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values.Context = string(name)

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
