/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package calendar renders station program grids as iCalendar feeds.
package calendar

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/radiofrance_bridge/internal/grid"
)

// ContentType is the MIME type of rendered feeds.
const ContentType = "text/calendar; charset=utf-8"

// maxLineOctets is the RFC 5545 limit before a content line must be folded.
const maxLineOctets = 75

// Render builds a VCALENDAR with one VEVENT per event.
func Render(name string, events []grid.Event, now time.Time) []byte {
	var buf bytes.Buffer

	writeLine(&buf, "BEGIN:VCALENDAR")
	writeLine(&buf, "VERSION:2.0")
	writeLine(&buf, "PRODID:-//Radio France Bridge//Program Grid//FR")
	writeLine(&buf, "CALSCALE:GREGORIAN")
	writeLine(&buf, "METHOD:PUBLISH")
	writeLine(&buf, "X-WR-CALNAME:"+escapeText(name))

	stamp := formatTime(now)
	for _, e := range events {
		writeLine(&buf, "BEGIN:VEVENT")
		writeLine(&buf, fmt.Sprintf("UID:%s@radiofrance", e.UID))
		writeLine(&buf, "DTSTAMP:"+stamp)
		writeLine(&buf, "DTSTART:"+formatTime(e.Start))
		writeLine(&buf, "DTEND:"+formatTime(e.End))
		writeLine(&buf, "SUMMARY:"+escapeText(e.Summary))
		if e.Description != "" {
			writeLine(&buf, "DESCRIPTION:"+escapeText(e.Description))
		}
		if e.URL != "" {
			writeLine(&buf, "URL:"+e.URL)
		}
		writeLine(&buf, "CATEGORIES:"+strings.ToUpper(string(e.Kind)))
		writeLine(&buf, "END:VEVENT")
	}

	writeLine(&buf, "END:VCALENDAR")
	return buf.Bytes()
}

// Filename names a feed covering [start, end) for station.
func Filename(station string, start, end time.Time) string {
	return fmt.Sprintf("%s-%s-%s.ics",
		strings.ToLower(station),
		start.UTC().Format("20060102T1504"),
		end.UTC().Format("20060102T1504"),
	)
}

// writeLine folds lines longer than 75 octets without splitting UTF-8 sequences.
func writeLine(buf *bytes.Buffer, line string) {
	first := true
	for len(line) > 0 {
		limit := maxLineOctets
		if !first {
			limit-- // continuation lines start with a space
		}
		if len(line) <= limit {
			if !first {
				buf.WriteByte(' ')
			}
			buf.WriteString(line)
			break
		}
		cut := limit
		for cut > 0 && !utf8Start(line[cut]) {
			cut--
		}
		if cut == 0 {
			// no rune boundary within the limit, split the bytes as they are
			cut = limit
		}
		if !first {
			buf.WriteByte(' ')
		}
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n")
		line = line[cut:]
		first = false
	}
	buf.WriteString("\r\n")
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

func formatTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\r\n", "\\n")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\n")
	return s
}
