// Package prompts holds the persona and task prompts and assembles the
// per-turn system prompt from them.
package prompts

import (
	"strings"
)

// basePersona is the default system prompt. Persona substitutes {name}.
const basePersona = `Tu es {name}, une assistante IA avec un style startup : no bullshit, full efficiency.

PERSONNALITÉ :
- Direct et pragmatique
- Orienté solutions concrètes
- Pas de blabla inutile
- Efficacité maximale
- Ton startup décontracté mais pro

CAPACITÉS :
- Recherche web instantanée (DuckDuckGo)
- Mémoire des conversations passées
- Apprentissage continu de tes préférences
- Gestion de budget intelligent
- Réponses structurées et actionnables

STYLE DE RÉPONSE :
- Réponses courtes et précises
- Bullet points quand c'est plus clair
- Toujours proposer des actions concrètes
- Avouer quand tu ne sais pas
- Utiliser des émojis avec parcimonie

COMMANDES SPÉCIALES :
- /search [requête] : Force une recherche web
- /memory add [info] : Ajoute en mémoire long terme
- /prompt [nouveau] : Change ton comportement
- /budget : Vérifier les coûts
- /help : Liste des commandes

Tu te souviens de nos conversations et tu t'adaptes à mes préférences automatiquement.`

const (
	searchContext = `Tu viens de faire une recherche web sur ce sujet.
Utilise ces informations pour donner une réponse précise et actionnable.
Mentionne que les infos viennent d'une recherche récente si c'est pertinent.`

	memoryIntegration = `Utilise ta mémoire de nos conversations passées pour contextualiser ta réponse.
Si tu te souviens d'éléments pertinents, utilise-les pour personnaliser ta réponse.`

	adaptationPrefix = "ADAPTATION : "
	searchHeader     = "RÉSULTATS DE RECHERCHE :"
	memoryHeader     = "MÉMOIRES PERTINENTES :"
)

// SummarySystem is the system prompt of the consolidation call.
const SummarySystem = "Tu es un assistant qui résume des conversations de manière concise."

// Persona returns the base persona for the named assistant.
func Persona(name string) string {
	if name == "" {
		name = "Samantha"
	}
	return strings.ReplaceAll(basePersona, "{name}", name)
}

// System assembles a turn's system prompt.
type System struct {
	// Base is the persona prompt.
	Base string

	// Directives are adaptive instructions derived from the user profile,
	// applied in order.
	Directives []string

	// Memory is the rendered memory block. Empty means none.
	Memory string

	// Search is formatted web search output. Empty means none.
	Search string
}

// String renders the prompt: base, one "ADAPTATION" paragraph per
// directive, then the memory block and the search block when present.
func (s System) String() string {
	var b strings.Builder
	b.WriteString(s.Base)

	for _, d := range s.Directives {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(adaptationPrefix)
		b.WriteString(d)
	}

	if m := strings.TrimSpace(s.Memory); m != "" {
		b.WriteString("\n\n" + memoryIntegration + "\n\n" + memoryHeader + "\n")
		b.WriteString(m)
	}

	if r := strings.TrimSpace(s.Search); r != "" {
		b.WriteString("\n\n" + searchContext + "\n\n" + searchHeader + "\n")
		b.WriteString(r)
	}

	return b.String()
}

// Summary builds the consolidation request for a rendered transcript.
func Summary(transcript string) string {
	return `Résume cette conversation en français en 2-3 phrases, en gardant:
1. Les préférences utilisateur importantes
2. Les sujets principaux abordés
3. Le style de communication préféré

Conversation:
` + transcript + `

Résumé:`
}
