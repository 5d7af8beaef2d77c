package memory

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Spandai/samantha-telegram-agent/pkg/storage"
)

const (
	profileHeader = "PROFIL UTILISATEUR :"
	summaryHeader = "RÉSUMÉ RÉCENT :"
	recentHeader  = "CONVERSATIONS RÉCENTES :"

	userSpeaker = "Utilisateur"
)

// renderProfile lists long-term keys in sorted order so the prompt is stable
// across calls.
func renderProfile(longTerm map[string]any) string {
	keys := make([]string, 0, len(longTerm))
	for k := range longTerm {
		if k == KeyLastUpdated {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(profileHeader)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- %s: %v", k, longTerm[k])
	}
	return b.String()
}

func renderTurns(turns []*storage.ConversationTurn, agentName string) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		speaker := agentName
		if t.UserAuthored {
			speaker = userSpeaker
		}
		lines = append(lines, speaker+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}
