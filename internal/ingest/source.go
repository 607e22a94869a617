// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// Handler receives decoded events. MQTTSource calls it from the client's
// callback goroutine, so handlers must be safe for concurrent use.
type Handler func(Event)

// Source produces events until its context is cancelled or the stream ends.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// ReaderSource decodes newline separated lines from any reader.
// Used directly for replaying captured logs, and by SerialSource.
type ReaderSource struct {
	R    io.Reader
	Name string // log prefix, defaults to "ingest"
}

// Run reads until EOF, a read error or ctx cancellation. EOF returns nil.
// Lines that fail to parse are logged and dropped.
func (s ReaderSource) Run(ctx context.Context, h Handler) error {
	name := s.Name
	if name == "" {
		name = "ingest"
	}

	var p Parser
	scanner := bufio.NewScanner(s.R)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := p.Parse(scanner.Text())
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			log.Printf("%s: %v", name, err)
			continue
		}
		if ev.Kind == KindSample && ev.Record.Time.IsZero() {
			ev.Record.Time = time.Now().UTC()
		}
		h(ev)
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: read: %w", name, err)
	}
	return nil
}

// SerialSource reads sample lines from a serial port.
type SerialSource struct {
	PortName string
	BaudRate int
}

// Run opens the port and streams it until ctx is cancelled.
// Cancelling closes the port, which unblocks the pending read.
func (s SerialSource) Run(ctx context.Context, h Handler) error {
	opts := serial.OpenOptions{
		PortName:              s.PortName,
		BaudRate:              uint(s.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("serial: open %s: %w", s.PortName, err)
	}
	log.Printf("serial: port opened on %s at %d baud", opts.PortName, opts.BaudRate)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		port.Close()
	}()

	return ReaderSource{R: port, Name: "serial"}.Run(ctx, h)
}
