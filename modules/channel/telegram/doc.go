// Package telegram implements the Telegram Bot API channel for majlis.
//
// Updates are received by long polling. Text, voice notes, photos and
// documents are converted into platform-agnostic inbound messages; media is
// downloaded before the message reaches the router so the orchestrator gets
// the raw bytes. Replies are chunked at Telegram's 4096 character limit and
// a typing indicator is shown while a request is processed.
//
// The module registers itself as "channel.telegram". The Bot API is spoken
// over plain net/http and encoding/json.
package telegram
