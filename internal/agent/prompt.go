package agent

import (
	"strings"
	"text/template"

	"github.com/tracklane/tracklane/internal/resolver"
)

const systemPromptTemplate = `You are the issue-tracking assistant for the team "{{.TeamName}}" ({{.TeamKey}}).

Use the provided tools to answer questions and carry out requests about issues, projects, and team members. Prefer exact ids from earlier tool results when referring to entities. When a tool reports an ambiguous reference, relay the candidates to the user instead of guessing.

Team context:
{{if .Projects}}Projects:
{{range .Projects}}- {{.Name}} ({{.Key}})
{{end}}{{else}}No projects yet.
{{end}}
Workflow states: {{join .States ", "}}
{{if .Labels}}Labels: {{join .Labels ", "}}
{{end}}Members:
{{range .Members}}- {{.}}
{{end}}
Keep replies short. Report tool results in plain language; the human-readable message in each result is safe to show verbatim.`

type promptProject struct {
	Name string
	Key  string
}

type promptData struct {
	TeamName string
	TeamKey  string
	Projects []promptProject
	States   []string
	Labels   []string
	Members  []string
}

var promptTmpl = template.Must(template.New("system").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(systemPromptTemplate))

// SystemPrompt renders the model's system prompt from the team context.
func SystemPrompt(tc *resolver.TeamContext) string {
	data := promptData{
		TeamName: tc.Team.Name,
		TeamKey:  tc.Team.Key,
	}
	for _, p := range tc.Projects {
		data.Projects = append(data.Projects, promptProject{Name: p.Name, Key: p.Key})
	}
	for _, s := range tc.States {
		data.States = append(data.States, s.Name)
	}
	for _, l := range tc.Labels {
		data.Labels = append(data.Labels, l.Name)
	}
	for _, m := range tc.Members {
		data.Members = append(data.Members, m.UserName)
	}

	var b strings.Builder
	if err := promptTmpl.Execute(&b, data); err != nil {
		// The template is static and the data is plain strings.
		panic(err)
	}
	return b.String()
}
