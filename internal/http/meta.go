package http

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sujalbistaa/confessly/internal/models"
)

const maxDescriptionLength = 200

// sharePage is served at /c/:slug so link previews show the confession.
// html/template escapes every field.
var sharePage = template.Must(template.New("confession").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} · Confessly</title>
<meta name="description" content="{{.Description}}">
<meta property="og:type" content="article">
<meta property="og:site_name" content="Confessly">
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Description}}">
<meta property="og:url" content="{{.URL}}">
<meta name="twitter:card" content="summary">
<meta name="twitter:title" content="{{.Title}}">
<meta name="twitter:description" content="{{.Description}}">
<link rel="canonical" href="{{.URL}}">
<style>body{font-family:sans-serif;max-width:40rem;margin:2rem auto;padding:0 1rem}small{color:#777}</style>
</head>
<body>
<article>
<small>{{.Category}} · {{.Likes}} likes · {{.Comments}} comments</small>
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
</article>
</body>
</html>
`))

type sharePageData struct {
	Title       string
	Description string
	Body        string
	Category    models.Category
	Likes       int
	Comments    int
	URL         string
}

func describe(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	r := []rune(flat)
	if len(r) <= maxDescriptionLength {
		return flat
	}
	return strings.TrimSpace(string(r[:maxDescriptionLength-1])) + "…"
}

// SharePage renders the crawler-friendly page for one confession.
func (e *Env) SharePage(c *gin.Context) {
	confession, err := e.Store.GetConfessionBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		status := http.StatusInternalServerError
		if isNotFound(err) {
			status = http.StatusNotFound
		}
		c.String(status, http.StatusText(status))
		return
	}
	c.HTML(http.StatusOK, "confession", sharePageData{
		Title:       confession.Title,
		Description: describe(confession.Body),
		Body:        confession.Body,
		Category:    confession.Category,
		Likes:       confession.Likes,
		Comments:    confession.CommentCount,
		URL:         e.BaseURL + "/c/" + confession.Slug,
	})
}
