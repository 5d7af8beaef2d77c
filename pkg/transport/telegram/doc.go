// Package telegram serves the assistant over the Telegram Bot API.
//
// A Bot long-polls for updates and answers each message concurrently. Plain
// text goes through the composer as a conversation turn; the commands below
// act on memory and budget directly:
//
//	/start             welcome message
//	/help              command list with the configured limits
//	/prompt <text>     store a custom prompt layered onto the persona
//	/search <query>    turn with forced web search
//	/budget            budget status and 7-day usage
//	/memory add <info> store a preference in long-term memory
//	/stats             memory and 30-day usage statistics
//	/reset             clear the short-term conversation
//
// Conversation turns and /search are paced per user (see the ratelimit
// package). Replies are split to the Telegram message length and sent as
// Markdown, falling back to plain text when the markup is rejected.
package telegram
