package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/columk1/threads-clone-sub001/users"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(name).ParseFS(TemplateFilesFS(), "layout.html", name)
}

func mustParseTemplate(name string) *template.Template {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}

// UIPageData is the template model shared by the auth pages
type UIPageData struct {
	AppName            string
	Error              string
	Notice             string
	FieldErrors        map[string]string
	Email              string
	Username           string
	UnauthenticatedURL string
	User               *users.Public
	CodeTTLMinutes     int
}

func (s *Server) pageData() UIPageData {
	return UIPageData{AppName: s.config.GetAppName()}
}

// render executes tmpl into a buffer first so a template error still
// produces a clean 500.
func render(w http.ResponseWriter, tmpl *template.Template, status int, data UIPageData) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Err(err).Str("template", tmpl.Name()).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
