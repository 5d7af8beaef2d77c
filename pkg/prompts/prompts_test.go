package prompts

import (
	"strings"
	"testing"
)

func TestPersona(t *testing.T) {
	p := Persona("Ava")
	if !strings.HasPrefix(p, "Tu es Ava, ") {
		t.Errorf("persona should start with the agent name, got %q", p[:20])
	}
	if strings.Contains(p, "{name}") {
		t.Error("persona still contains the name placeholder")
	}
	if !strings.HasPrefix(Persona(""), "Tu es Samantha, ") {
		t.Error("empty name should default to Samantha")
	}
}

func TestSystem_String(t *testing.T) {
	tests := []struct {
		name   string
		system System
		want   string
	}{
		{
			name:   "base only",
			system: System{Base: "BASE"},
			want:   "BASE",
		},
		{
			name:   "directives in order, blanks skipped",
			system: System{Base: "BASE", Directives: []string{"un", " ", "deux"}},
			want:   "BASE\n\nADAPTATION : un\n\nADAPTATION : deux",
		},
		{
			name:   "memory block",
			system: System{Base: "BASE", Memory: "PROFIL UTILISATEUR :\n- a: 1"},
			want:   "BASE\n\n" + memoryIntegration + "\n\nMÉMOIRES PERTINENTES :\nPROFIL UTILISATEUR :\n- a: 1",
		},
		{
			name:   "search after memory",
			system: System{Base: "BASE", Memory: "M", Search: "S"},
			want: "BASE\n\n" + memoryIntegration + "\n\nMÉMOIRES PERTINENTES :\nM" +
				"\n\n" + searchContext + "\n\nRÉSULTATS DE RECHERCHE :\nS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.system.String(); got != tt.want {
				t.Errorf("String() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	got := Summary("Utilisateur: salut")
	if !strings.Contains(got, "Conversation:\nUtilisateur: salut\n\nRésumé:") {
		t.Errorf("unexpected summary prompt: %q", got)
	}
}
