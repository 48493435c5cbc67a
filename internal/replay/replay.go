// Package replay feeds recorded captures into the live engine. A capture is
// newline-delimited JSON, one {"op": ..., "ts": ..., "data": {...}} object
// per packet.
package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"combat-meter/internal/packet"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const maxLineSize = 4 << 20

var ErrMalformed = errors.New("malformed capture line")

type line struct {
	Op        string          `json:"op"`
	Timestamp int64           `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

type Reader struct {
	scanner *bufio.Scanner
	lineNo  int
	logger  zerolog.Logger
}

func NewReader(r io.Reader, logger zerolog.Logger) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: scanner, logger: logger}
}

// Next returns the next event, or io.EOF once the capture is exhausted.
// Unknown opcodes are skipped; a line that cannot be decoded is an error.
func (rd *Reader) Next() (packet.Event, error) {
	for rd.scanner.Scan() {
		rd.lineNo++
		raw := rd.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", rd.lineNo, errors.Join(ErrMalformed, err))
		}

		op, ok := packet.ParseOpcode(l.Op)
		if !ok {
			rd.logger.Warn().Int("line", rd.lineNo).Str("op", l.Op).Msg("skipping unknown opcode")
			continue
		}

		ev, err := decode(op, l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", rd.lineNo, errors.Join(ErrMalformed, err))
		}
		return ev, nil
	}
	if err := rd.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return nil, io.EOF
}

func decode(op packet.Opcode, l line) (packet.Event, error) {
	var ev packet.Event
	var header *packet.Header

	switch op {
	case packet.OpInitPC:
		e := &packet.InitPC{}
		ev, header = e, &e.Header
	case packet.OpNewPC:
		e := &packet.NewPC{}
		ev, header = e, &e.Header
	case packet.OpNewNpc:
		e := &packet.NewNpc{}
		ev, header = e, &e.Header
	case packet.OpPartyInfo:
		e := &packet.PartyInfo{}
		ev, header = e, &e.Header
	case packet.OpPartyLeave:
		e := &packet.PartyLeave{}
		ev, header = e, &e.Header
	case packet.OpEntityIDChange:
		e := &packet.EntityIDChange{}
		ev, header = e, &e.Header
	case packet.OpSkillStart:
		e := &packet.SkillStart{}
		ev, header = e, &e.Header
	case packet.OpNewProjectile:
		e := &packet.NewProjectile{}
		ev, header = e, &e.Header
	case packet.OpSkillDamage:
		e := &packet.SkillDamage{}
		ev, header = e, &e.Header
	case packet.OpShieldApplied:
		e := &packet.ShieldApplied{}
		ev, header = e, &e.Header
	case packet.OpCombatEnd:
		e := &packet.CombatEnd{}
		ev, header = e, &e.Header
	case packet.OpZoneChange:
		e := &packet.ZoneChange{}
		ev, header = e, &e.Header
	default:
		return nil, fmt.Errorf("no decoder for %s", op)
	}

	if len(l.Data) > 0 {
		if err := json.Unmarshal(l.Data, ev); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	header.Timestamp = l.Timestamp
	return ev, nil
}

// Stream sends every event of r to events and closes events when done. It
// stops early when ctx is cancelled or a line is malformed.
func Stream(ctx context.Context, r io.Reader, events chan<- packet.Event, logger zerolog.Logger) error {
	defer close(events)

	rd := NewReader(r, logger)
	count := 0
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			logger.Info().Int("events", count).Msg("replay finished")
			return nil
		}
		if err != nil {
			logger.Error().Err(err).Int("events", count).Msg("replay aborted")
			return err
		}

		select {
		case events <- ev:
			count++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// StreamFile is Stream over the capture stored at path.
func StreamFile(ctx context.Context, path string, events chan<- packet.Event, logger zerolog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		close(events)
		return fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()

	return Stream(ctx, f, events, logger.With().Str("capture", path).Logger())
}
