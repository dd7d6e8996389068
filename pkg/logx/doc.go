// Package logx is the structured logging layer, built on zerolog.
//
// Console output is human readable, file output is JSON, and lines at or
// above a configured level can be mirrored into a Telegram ops chat.
package logx
