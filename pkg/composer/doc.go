// Package composer turns one inbound message into one reply.
//
// A turn runs in this order:
//
//  1. The budget engine checks that the default estimate fits in the daily
//     and monthly windows. A denial ends the turn with its reason.
//  2. The memory context, the adaptive directives and, when the message
//     contains a trigger phrase or search is forced, web search results are
//     fetched concurrently. Each part fails open.
//  3. The system prompt is assembled and the chat model is called.
//  4. Both turns are recorded in memory and the call is charged to the
//     ledger as a "chat" event.
//  5. A budget warning is appended to the reply when a threshold is crossed.
//  6. If the user has enough history and a missing or stale summary, a
//     background consolidation summarizes the recent turns. Its cost is
//     charged as a "summary" event.
//
// Wait drains background consolidations before shutdown.
package composer
