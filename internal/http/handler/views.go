package handler

import (
	"html/template"
	"log/slog"
	"net/http"
)

const layout = `{{define "layout"}}<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}} · Chat</title></head>
<body>
<header><a href="/">Chat</a>{{if .Authenticated}} · <a href="/chat">Rooms</a> · <a href="/profile">Profile</a>
<form method="post" action="/logout" style="display:inline"><input type="hidden" name="csrf_token" value="{{.CSRF}}"><button>Log out</button></form>{{end}}</header>
<main>{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}{{if .Notice}}<p>{{.Notice}}</p>{{end}}{{template "content" .}}</main>
</body></html>{{end}}`

var pages = map[string]string{
	"landing": `{{define "content"}}<h1>Welcome</h1>
{{if .Authenticated}}<p>Signed in as {{.Name}}. <a href="/chat">Open chat</a></p>
{{else}}<p><a href="/login{{if .Redirect}}?redirect={{.Redirect}}{{end}}">Log in</a> or <a href="/register">create an account</a>.</p>{{end}}{{end}}`,

	"login": `{{define "content"}}<h1>Log in</h1>
<form method="post" action="/login">
<input type="hidden" name="csrf_token" value="{{.CSRF}}"><input type="hidden" name="redirect" value="{{.Redirect}}">
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button>Log in</button></form>{{end}}`,

	"register": `{{define "content"}}<h1>Create account</h1>
<form method="post" action="/register">
<input type="hidden" name="csrf_token" value="{{.CSRF}}">
<label>Name <input name="name" value="{{.Name}}" required></label>
<label>Email <input type="email" name="email" value="{{.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button>Register</button></form>{{end}}`,

	"chat": `{{define "content"}}<h1>Chat</h1>
<p>Hello {{.Name}}. Session {{.SessionID}} is {{.State}}.</p>{{end}}`,

	"profile": `{{define "content"}}<h1>Profile</h1>
<form method="post" action="/profile">
<input type="hidden" name="csrf_token" value="{{.CSRF}}">
<label>Name <input name="name" value="{{.Name}}" required></label>
<button>Save</button></form>{{end}}`,
}

type pageData struct {
	Title         string
	Authenticated bool
	CSRF          string
	Error         string
	Notice        string
	Redirect      string
	Name          string
	Email         string
	SessionID     string
	State         string
}

type views struct {
	tmpl   map[string]*template.Template
	logger *slog.Logger
}

func newViews(logger *slog.Logger) *views {
	v := &views{tmpl: make(map[string]*template.Template, len(pages)), logger: logger}
	base := template.Must(template.New("layout").Parse(layout))
	for name, body := range pages {
		v.tmpl[name] = template.Must(template.Must(base.Clone()).Parse(body))
	}
	return v
}

func (v *views) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := v.tmpl[name].ExecuteTemplate(w, "layout", data); err != nil {
		v.logger.Error("render view", "view", name, "error", err)
	}
}
