package search

import (
	"fmt"
	"strings"
)

// Format renders results as the text block handed to the model.
func Format(r *Results) string {
	if r.Empty() {
		query := ""
		if r != nil {
			query = r.Query
		}
		return "ℹ️ Aucun résultat trouvé pour: " + query
	}

	var parts []string
	if r.Instant != "" {
		parts = append(parts, "📋 RÉPONSE DIRECTE:\n"+r.Instant+"\n")
	}
	if len(r.Web) > 0 {
		parts = append(parts, "🔍 RÉSULTATS WEB:")
		for i, res := range r.Web {
			parts = append(parts, fmt.Sprintf("%d. **%s**", i+1, res.Title))
			if res.Snippet != "" {
				parts = append(parts, "   "+res.Snippet)
			}
			parts = append(parts, "   🔗 "+res.URL+"\n")
		}
	}
	return strings.Join(parts, "\n")
}
