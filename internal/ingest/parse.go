// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/magcal/internal/gps"
	"github.com/relabs-tech/magcal/internal/imu"
)

// ErrSkip marks lines that carry nothing of interest: blank lines, banners,
// NMEA sentence types we do not track.
var ErrSkip = errors.New("ingest: line skipped")

// Kind tells which field of an Event is populated.
type Kind int

const (
	KindSample Kind = iota
	KindFix
)

// Event is one decoded line from a sample stream.
type Event struct {
	Kind   Kind
	Record imu.Record // KindSample
	Fix    gps.Fix    // KindFix
}

// Parser decodes sample lines. It keeps the GPS fix accumulated from
// earlier NMEA sentences, so a GGA after an RMC extends the same fix.
// A Parser is not safe for concurrent use.
type Parser struct {
	fix gps.Fix
}

// ParseLine decodes a single line with a fresh Parser.
func ParseLine(line string) (Event, error) {
	var p Parser
	return p.Parse(line)
}

// Parse decodes one line. Three encodings are accepted:
//
//	{"mag":[x,y,z],...}         JSON imu.Record
//	$GPRMC,... / $GPGGA,...     NMEA sentence
//	... [a, b, ..., mx, my, mz] legacy debug print, last three numbers of the last list
func (p *Parser) Parse(line string) (Event, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Event{}, ErrSkip
	case strings.HasPrefix(line, "{"):
		return parseJSON(line)
	case strings.HasPrefix(line, "$"):
		return p.parseNMEA(line)
	case strings.Contains(line, "["):
		return parseBracketed(line)
	}
	return Event{}, ErrSkip
}

func parseJSON(line string) (Event, error) {
	var rec imu.Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return Event{}, fmt.Errorf("ingest: json record: %w", err)
	}
	return Event{Kind: KindSample, Record: rec}, nil
}

func (p *Parser) parseNMEA(line string) (Event, error) {
	sentence, err := nmea.Parse(line)
	if err != nil {
		return Event{}, fmt.Errorf("ingest: nmea: %w", err)
	}
	switch sentence.DataType() {
	case nmea.TypeRMC:
		p.fix.ApplyRMC(sentence.(nmea.RMC))
	case nmea.TypeGGA:
		p.fix.ApplyGGA(sentence.(nmea.GGA))
	default:
		return Event{}, ErrSkip
	}
	return Event{Kind: KindFix, Fix: p.fix}, nil
}

func parseBracketed(line string) (Event, error) {
	start := strings.LastIndex(line, "[")
	body := line[start+1:]
	if end := strings.Index(body, "]"); end >= 0 {
		body = body[:end]
	}

	fields := strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) < 3 {
		return Event{}, fmt.Errorf("ingest: bracketed list has %d values, need at least 3", len(fields))
	}

	var rec imu.Record
	for i, f := range fields[len(fields)-3:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Event{}, fmt.Errorf("ingest: bracketed value %q: %w", f, err)
		}
		rec.Mag[i] = v
	}
	return Event{Kind: KindSample, Record: rec}, nil
}
