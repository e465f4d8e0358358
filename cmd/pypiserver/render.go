// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"html/template"
	"iter"
	"net/http"

	"github.com/bureau-foundation/pypiserver/lib/simpleindex"
)

// indexTemplate renders both index pages. Escaping of project names,
// versions and filenames happens here and nowhere else.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta name="pypi:repository-version" content="1.0">
    <title>{{.Title}}</title>
  </head>
  <body>
    <h1>{{.Title}}</h1>
{{- range .Links}}
    <a href="{{.Href}}">{{.Text}}</a><br/>
{{- end}}
  </body>
</html>
`))

type indexPage struct {
	Title string
	Links []simpleindex.Link
}

// renderIndex buffers the page so a template failure can still be
// reported as a 500.
func (h *Handler) renderIndex(writer http.ResponseWriter, request *http.Request, title string, links iter.Seq[simpleindex.Link]) {
	var buffer bytes.Buffer
	if err := indexTemplate.Execute(&buffer, indexPage{Title: title, Links: simpleindex.Collect(links)}); err != nil {
		h.fail(writer, request, err)
		return
	}
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.Write(buffer.Bytes())
}
