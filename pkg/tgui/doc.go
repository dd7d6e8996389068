// Package tgui holds small helpers for composing Telegram messages in HTML
// parse mode: escaping, inline formatting tags, and rune-aware length checks.
package tgui
