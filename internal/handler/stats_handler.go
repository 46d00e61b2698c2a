package handler

import (
	"net/http"

	"pairgate/internal/app/gateway"
	"pairgate/internal/app/presence"
	"pairgate/internal/pkg/resp"
)

// HandleStats creates an HTTP HandlerFunc reporting live connection and room
// counts, overall and per namespace. `?ns=<namespace>` scopes the report to
// one namespace.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ns := r.URL.Query().Get("ns"); ns != "" {
			resp.RespondSuccess(w, r, deps.Presence.StatsForNamespace(ns))
			return
		}

		data := struct {
			Total      presence.Stats                     `json:"total"`
			Namespaces map[string]presence.NamespaceStats `json:"namespaces"`
		}{
			Total: deps.Presence.Stats(),
			Namespaces: map[string]presence.NamespaceStats{
				gateway.NamespaceChat:         deps.Presence.StatsForNamespace(gateway.NamespaceChat),
				gateway.NamespaceVerification: deps.Presence.StatsForNamespace(gateway.NamespaceVerification),
			},
		}

		resp.RespondSuccess(w, r, data)
	}
}
