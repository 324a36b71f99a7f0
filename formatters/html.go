// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

package formatters

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"path/filepath"

	"github.com/petmal/lwlltrial/runners"
	"github.com/petmal/lwlltrial/version"
)

const templateFile = "templates/html.tmpl"

//go:embed templates/*.tmpl
var templatesFS embed.FS

var currentVersionData = VersionData{
	Name:    version.Name,
	Version: version.GetVersion(),
	Source:  version.GetSource(),
}

// VersionData contains version information included in formatted output.
type VersionData struct {
	// Name is the application name.
	Name string
	// Version is the application version string.
	Version string
	// Source is the application source code URL.
	Source string
}

// NewHTMLFormatter creates a new formatter that outputs the report as an HTML document.
func NewHTMLFormatter() Formatter {
	templ := template.Must(template.New(filepath.Base(templateFile)).Funcs(template.FuncMap{
		"ToStatus":      ToStatus,
		"TaskName":      TaskName,
		"SuccessRate":   SuccessRate,
		"Percent":       Percent,
		"CellDurations": CellDurations,
		"RoundToMS":     RoundToMS,
		"Timestamp":     Timestamp,
	}).ParseFS(templatesFS, templateFile))
	return &htmlFormatter{
		templ: templ,
	}
}

type htmlFormatter struct {
	templ *template.Template
}

func (f htmlFormatter) FileExt() string {
	return "html"
}

func (f htmlFormatter) Write(report runners.RunReport, out io.Writer) error {
	if err := f.templ.Execute(out, struct {
		Report      runners.RunReport
		VersionData VersionData
	}{
		Report:      report,
		VersionData: currentVersionData,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrPrintResults, err)
	}
	return nil
}
