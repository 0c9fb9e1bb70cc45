package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/a-h/templ"
)

// statusPage renders the built-in page for a status code.
func statusPage(status int, detail string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		title := templ.EscapeString(strconv.Itoa(status) + " " + http.StatusText(status))
		_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family:sans-serif;text-align:center;padding-top:4em">
<h1>%s</h1>
`, title, title)
		if err != nil {
			return err
		}
		if detail != "" {
			if _, err := fmt.Fprintf(w, "<p>%s</p>\n", templ.EscapeString(detail)); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "<hr><small>hotserve</small>\n</body>\n</html>\n")
		return err
	})
}

// writeStatus answers with the configured error page for status when one
// exists and is readable, and with the built-in page otherwise.
func writeStatus(w http.ResponseWriter, r *http.Request, errorPage string, status int, detail string) {
	if errorPage != "" {
		if body, err := os.ReadFile(errorPage); err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(status)
			if r.Method != http.MethodHead {
				_, _ = w.Write(body)
			}
			return
		}
	}

	templ.Handler(statusPage(status, detail), templ.WithStatus(status)).ServeHTTP(w, r)
}
