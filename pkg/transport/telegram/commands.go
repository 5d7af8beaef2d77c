package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
)

var commandMenu = []tgbotapi.BotCommand{
	{Command: "start", Description: "Démarrer une conversation"},
	{Command: "help", Description: "Voir la liste des commandes"},
	{Command: "prompt", Description: "Changer le comportement de l'assistante"},
	{Command: "search", Description: "Forcer une recherche web"},
	{Command: "budget", Description: "Vérifier le budget et les coûts"},
	{Command: "memory", Description: "Gérer la mémoire long terme"},
	{Command: "stats", Description: "Voir les statistiques d'utilisation"},
	{Command: "reset", Description: "Réinitialiser la conversation"},
}

const (
	welcomeText = `👋 **Salut ! Je suis %s !**

Je suis votre assistante IA avec un style startup : no bullshit, full efficiency.

**Mes capacités :**
• 🔍 Recherche web instantanée
• 🧠 Mémoire des conversations
• 💰 Gestion de budget intelligent
• 🎯 Réponses directes et actionables

**Commandes utiles :**
/help - Voir toutes les commandes
/search [requête] - Recherche web forcée
/budget - Vérifier les coûts
/prompt [nouveau] - Changer mon comportement

**Prêt à bosser ensemble ? Posez-moi votre première question !** 🚀`

	helpText = `🤖 **COMMANDES %s**

**💬 Conversation :**
Tapez simplement votre message - je réponds avec recherche et mémoire !

**🔧 Commandes spéciales :**
• ` + "`/search [requête]`" + ` - Force recherche web
• ` + "`/prompt [nouveau]`" + ` - Change mon comportement
• ` + "`/budget`" + ` - Statut budget et coûts
• ` + "`/memory add [info]`" + ` - Ajoute en mémoire long terme
• ` + "`/stats`" + ` - Statistiques d'utilisation
• ` + "`/reset`" + ` - Remet à zéro la conversation

**💡 Exemples :**
• ` + "`Recherche les dernières news IA`" + `
• ` + "`/search prix bitcoin aujourd'hui`" + `
• ` + "`/prompt Tu es maintenant un expert marketing`" + `
• ` + "`/memory add J'aime les réponses courtes`" + `

**💰 Budget :** $%s/jour, $%s/mois
**🔄 Style :** Startup no bullshit, efficacité max

**Questions ? Tapez juste votre message !**`

	promptUsage = "❓ **Usage :** `/prompt [nouveau comportement]`\n\n" +
		"**Exemples :**\n" +
		"• `/prompt Tu es un expert en marketing`\n" +
		"• `/prompt Réponds toujours avec des bullet points`\n" +
		"• `/prompt Sois très concis, max 2 phrases`"

	searchUsage = "❓ **Usage :** `/search [votre recherche]`\n\n" +
		"**Exemple :** `/search dernières actualités IA 2024`"

	memoryUsage = "❓ **Usage :** `/memory add [information]`\n\n" +
		"**Exemples :**\n" +
		"• `/memory add Je préfère les réponses courtes`\n" +
		"• `/memory add Je travaille dans le marketing`\n" +
		"• `/memory add J'aime les bullet points`"

	resetText = "🔄 **Conversation remise à zéro !**\n\n" +
		"• Mémoire court terme vidée\n" +
		"• Mémoire long terme conservée\n" +
		"• Prêt pour une nouvelle conversation !"

	unknownCommandText = "❓ Commande inconnue. Tapez /help pour la liste des commandes."
)

func (b *Bot) handleCommand(ctx context.Context, chatID int64, userID, command, args string) {
	b.logger.DebugContext(ctx, "command received", "command", command)

	switch command {
	case "start":
		b.reply(ctx, chatID, fmt.Sprintf(welcomeText, b.agentName()))
	case "help":
		limits := b.composer.Budget().Limits()
		b.reply(ctx, chatID, fmt.Sprintf(helpText,
			strings.ToUpper(b.agentName()), limits.Daily.StringFixed(2), limits.Monthly.StringFixed(2)))
	case "prompt":
		b.setPrompt(ctx, chatID, userID, args)
	case "search":
		if args == "" {
			b.reply(ctx, chatID, searchUsage)
			return
		}
		b.converse(ctx, chatID, userID, args, true)
	case "budget":
		b.budgetCommand(ctx, chatID, userID)
	case "memory":
		b.memoryCommand(ctx, chatID, userID, args)
	case "stats":
		b.statsCommand(ctx, chatID, userID)
	case "reset":
		if _, err := b.composer.Memory().Reset(ctx, userID); err != nil {
			b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur reset: %v", err))
			return
		}
		b.reply(ctx, chatID, resetText)
	default:
		b.reply(ctx, chatID, unknownCommandText)
	}
}

func (b *Bot) agentName() string {
	return b.composer.Memory().Settings().AgentName
}

func (b *Bot) setPrompt(ctx context.Context, chatID int64, userID, prompt string) {
	if prompt == "" {
		b.reply(ctx, chatID, promptUsage)
		return
	}

	if err := b.composer.Memory().UpsertLongTerm(ctx, userID, memory.KeyCustomPrompt, prompt); err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur: %v", err))
		return
	}
	b.reply(ctx, chatID, "✅ **Prompt mis à jour !**\n\n"+truncate(prompt, 100))
}

func (b *Bot) budgetCommand(ctx context.Context, chatID int64, userID string) {
	bud := b.composer.Budget()

	status, err := bud.Status(ctx, userID)
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur budget: %v", err))
		return
	}
	stats, err := bud.UsageStats(ctx, userID, 7)
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur budget: %v", err))
		return
	}

	b.reply(ctx, chatID, budget.FormatStatus(status)+"\n\n"+budget.FormatUsageStats(stats))
}

func (b *Bot) memoryCommand(ctx context.Context, chatID int64, userID, args string) {
	if args == "" {
		b.reply(ctx, chatID, memoryUsage)
		return
	}

	fields := strings.Fields(args)
	if fields[0] != "add" || len(fields) < 2 {
		b.reply(ctx, chatID, "❓ Utilisez: `/memory add [information]`")
		return
	}
	info := strings.TrimSpace(strings.TrimPrefix(args, "add"))

	if err := b.composer.Memory().UpsertLongTerm(ctx, userID, memory.KeyUserPreference, info); err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur mémoire: %v", err))
		return
	}
	b.reply(ctx, chatID, "✅ **Ajouté en mémoire :**\n"+info)
}

func (b *Bot) statsCommand(ctx context.Context, chatID int64, userID string) {
	mem, err := b.composer.Memory().Stats(ctx, userID)
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur stats: %v", err))
		return
	}
	usage, err := b.composer.Budget().UsageStats(ctx, userID, 30)
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur stats: %v", err))
		return
	}

	b.reply(ctx, chatID, formatStats(mem, usage))
}

func formatStats(mem memory.Stats, usage budget.UsageStats) string {
	var sb strings.Builder
	sb.WriteString("📈 **VOS STATISTIQUES**\n\n")
	sb.WriteString("**💾 Mémoire :**\n")
	fmt.Fprintf(&sb, "• Messages stockés: %d\n", mem.TotalTurns)
	fmt.Fprintf(&sb, "• Tokens en mémoire: %s\n", humanize.Comma(mem.TotalTokens))
	fmt.Fprintf(&sb, "• Mémoire moyen terme: %s\n", check(mem.HasSummary))
	fmt.Fprintf(&sb, "• Mémoire long terme: %s\n\n", check(mem.HasLongTerm))
	fmt.Fprintf(&sb, "**💰 Usage (%d jours) :**\n", usage.DaysAnalyzed)
	fmt.Fprintf(&sb, "• Messages: %d\n", usage.TotalMessages)
	fmt.Fprintf(&sb, "• Coût total: $%s\n", usage.TotalCost.StringFixed(2))
	fmt.Fprintf(&sb, "• Coût moyen: $%s/msg\n", usage.AvgCostPerMessage.StringFixed(4))
	fmt.Fprintf(&sb, "• Tokens: %s", humanize.Comma(int64(usage.TotalTokens)))
	return sb.String()
}

func check(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
