package scaffolding

// StarterFile is one file written into a new site. Content is a
// text/template executed with a SiteContext.
type StarterFile struct {
	Path    string
	Content string
}

// starterFiles make up the default site. Their paths match the routes and
// error pages of DefaultConfig.
var starterFiles = []StarterFile{
	{
		Path: "templates/index.html",
		Content: `{{"{{"}}template "partials/header" .{{"}}"}}
<main class="container">
  <h1>{{"{{"}} .title {{"}}"}}</h1>
  <p>{{"{{"}} .tagline {{"}}"}}</p>
  <p>Edit <code>templates/index.html</code> or <code>content/index.yml</code> and save. The page reloads by itself.</p>
</main>
{{"{{"}}template "partials/footer" .{{"}}"}}
`,
	},
	{
		Path: "templates/partials/header.html",
		Content: `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{"{{"}} .title {{"}}"}}</title>
  <link rel="stylesheet" href="/static/styles.css">
</head>
<body>
`,
	},
	{
		Path: "templates/partials/footer.html",
		Content: `<footer class="container"><small>{{.ProjectName}}, created {{.Date}}</small></footer>
</body>
</html>
`,
	},
	{
		Path: "content/index.yml",
		Content: `title: {{.ProjectName}}
tagline: Served by hotserve
`,
	},
	{
		Path: "public/styles.css",
		Content: `* {
  margin: 0;
  padding: 0;
  box-sizing: border-box;
}

body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  line-height: 1.6;
  color: #1f2937;
  background-color: #ffffff;
}

.container {
  max-width: 48rem;
  margin: 0 auto;
  padding: 2rem 1rem;
}
`,
	},
	{
		Path: "404.html",
		Content: `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Not Found</title></head>
<body>
  <h1>404</h1>
  <p>There is nothing here. <a href="/">Back to {{.ProjectName}}</a></p>
</body>
</html>
`,
	},
}
