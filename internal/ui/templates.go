package ui

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"
)

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"formatTimePtr": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"stateColor": func(state string) string {
		switch strings.ToUpper(state) {
		case "PENDING":
			return "yellow"
		case "RUNNING":
			return "blue"
		case "COMPLETED":
			return "green"
		case "FAILED":
			return "red"
		default:
			return "gray"
		}
	},
	"seconds": func(s float64) string {
		return fmt.Sprintf("%.2f", s)
	},
	// share is the percentage width of a bar for v in a chart scaled to top.
	"share": func(v, top float64) int {
		if top <= 0 {
			return 0
		}
		return int(v / top * 100)
	},
}

// renderTemplate renders a named page inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(templates["layout"])
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}
	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-7xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex h-16">
                <a href="{{.Base}}/" class="flex items-center px-2 py-2 text-xl font-bold text-indigo-600">schedsim</a>
                <a href="/metrics" class="ml-6 inline-flex items-center text-sm font-medium text-gray-500 hover:text-gray-700">Metrics</a>
            </div>
        </div>
    </nav>
    <main class="max-w-7xl mx-auto py-6 sm:px-6 lg:px-8">
        {{template "content" .}}
    </main>
</body>
</html>`,

	"error": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <div class="rounded-md bg-red-50 p-4">
        <h1 class="text-lg font-medium text-red-800">{{.Message}}</h1>
        <a href="{{.Base}}/" class="mt-2 inline-block text-sm text-red-700 underline">Back to runs</a>
    </div>
</div>
{{end}}`,

	"runs/list": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900 mb-6">Runs</h1>

    <div class="grid grid-cols-2 gap-5 lg:grid-cols-4 mb-8">
        {{range $state, $n := .Counts}}
        <a href="{{$.Base}}/?state={{$state}}" class="bg-white shadow rounded-lg p-5">
            <div class="text-sm font-medium text-{{stateColor $state}}-600">{{$state}}</div>
            <div class="mt-1 text-3xl font-semibold text-gray-900">{{$n}}</div>
        </a>
        {{end}}
    </div>

    {{if .StateFilter}}<p class="mb-4 text-sm text-gray-500">Showing {{.StateFilter}} runs. <a href="{{.Base}}/" class="underline">Show all</a></p>{{end}}

    {{if .Runs}}
    <div class="bg-white shadow overflow-hidden rounded-lg">
        <table class="min-w-full divide-y divide-gray-200">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Run</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">State</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Scheduler</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Consumer</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Jobs</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Avg turnaround</th>
                    <th class="px-6 py-3 text-left text-xs font-medium text-gray-500 uppercase">Created</th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .Runs}}
                <tr>
                    <td class="px-6 py-4 text-sm font-mono"><a href="{{$.Base}}/runs/{{.ID}}" class="text-indigo-600 hover:underline">{{.ID}}</a></td>
                    <td class="px-6 py-4 text-sm"><span class="px-2 rounded-full bg-{{stateColor (print .State)}}-100 text-{{stateColor (print .State)}}-800">{{.State}}</span></td>
                    <td class="px-6 py-4 text-sm">{{.Scheduler}}</td>
                    <td class="px-6 py-4 text-sm">{{.Consumer}}</td>
                    <td class="px-6 py-4 text-sm">{{.FinishedCount}}/{{.JobCount}}</td>
                    <td class="px-6 py-4 text-sm">{{seconds .AvgTurnaround}}s</td>
                    <td class="px-6 py-4 text-sm text-gray-500">{{formatTime .CreatedAt}}</td>
                </tr>
                {{end}}
            </tbody>
        </table>
    </div>
    <div class="mt-4 flex justify-between text-sm">
        {{if .Pagination.HasPrev}}<a href="{{.Base}}/?offset={{.Pagination.PrevOffset}}&state={{.StateFilter}}" class="text-indigo-600">Previous</a>{{else}}<span></span>{{end}}
        <span class="text-gray-500">{{.Pagination.Total}} runs</span>
        {{if .Pagination.HasMore}}<a href="{{.Base}}/?offset={{.Pagination.NextOffset}}&state={{.StateFilter}}" class="text-indigo-600">Next</a>{{else}}<span></span>{{end}}
    </div>
    {{else}}
    <p class="text-gray-500">No runs yet. Submit one with <code>schedsim submit</code> or POST /api/v1/runs.</p>
    {{end}}
</div>
{{end}}`,

	"runs/detail": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900 font-mono">{{.Run.ID}}</h1>
    <p class="mt-1 text-sm"><span class="px-2 rounded-full bg-{{stateColor (print .Run.State)}}-100 text-{{stateColor (print .Run.State)}}-800">{{.Run.State}}</span></p>
    {{if .Run.Error}}<div class="mt-4 rounded-md bg-red-50 p-4 text-sm text-red-700">{{.Run.Error}}</div>{{end}}

    <dl class="mt-6 grid grid-cols-2 gap-4 lg:grid-cols-4 bg-white shadow rounded-lg p-6 text-sm">
        <div><dt class="text-gray-500">Scheduler</dt><dd>{{.Run.Scheduler}}</dd></div>
        <div><dt class="text-gray-500">Producer</dt><dd>{{.Run.Producer}}</dd></div>
        <div><dt class="text-gray-500">Consumer</dt><dd>{{.Run.Consumer}}{{if eq (print .Run.Consumer) "multi"}} ({{.Run.Cores}} cores){{end}}</dd></div>
        <div><dt class="text-gray-500">Jobs</dt><dd>{{.Run.FinishedCount}} of {{.Run.JobCount}} finished</dd></div>
        <div><dt class="text-gray-500">Avg wait</dt><dd>{{seconds .Run.AvgWait}}s</dd></div>
        <div><dt class="text-gray-500">Avg turnaround</dt><dd>{{seconds .Run.AvgTurnaround}}s</dd></div>
        <div><dt class="text-gray-500">Simulated</dt><dd>{{seconds .Run.Simulated}}s</dd></div>
        <div><dt class="text-gray-500">Completed</dt><dd>{{formatTimePtr .Run.CompletedAt}}</dd></div>
    </dl>

    {{if .Jobs}}
    <h2 class="mt-8 mb-4 text-lg font-medium text-gray-900">Jobs in finish order</h2>
    <div class="bg-white shadow overflow-hidden rounded-lg">
        <table class="min-w-full divide-y divide-gray-200 text-sm">
            <thead class="bg-gray-50">
                <tr>
                    <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Job #</th>
                    <th class="px-4 py-2 text-right text-xs font-medium text-gray-500 uppercase">Execute</th>
                    <th class="px-4 py-2 text-right text-xs font-medium text-gray-500 uppercase">Wait</th>
                    <th class="px-4 py-2 text-right text-xs font-medium text-gray-500 uppercase">Total</th>
                    <th class="px-4 py-2 w-1/2"></th>
                </tr>
            </thead>
            <tbody class="divide-y divide-gray-200">
                {{range .Jobs}}
                <tr>
                    <td class="px-4 py-2">Job {{.JobID}}</td>
                    <td class="px-4 py-2 text-right">{{seconds .ExecuteTime}}</td>
                    <td class="px-4 py-2 text-right">{{seconds .WaitTime}}</td>
                    <td class="px-4 py-2 text-right">{{seconds .TotalTime}}</td>
                    <td class="px-4 py-2">
                        <div class="flex h-3">
                            <div class="bg-yellow-400" style="width: {{share .WaitTime $.Longest}}%"></div>
                            <div class="bg-blue-500" style="width: {{share .ProcessTime $.Longest}}%"></div>
                        </div>
                    </td>
                </tr>
                {{end}}
            </tbody>
        </table>
    </div>
    {{end}}
</div>
{{end}}`,
}
