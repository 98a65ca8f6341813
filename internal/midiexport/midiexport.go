package midiexport

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	TicksPerQuarter = 480
	DefaultBPM      = 120.0

	// General MIDI programs.
	PianoProgram  = 0
	ViolinProgram = 40

	chordChannel  = 0
	melodyChannel = 1
)

// Part selects which tracks a file carries.
type Part string

const (
	PartChords   Part = "chords"
	PartMelody   Part = "melody"
	PartCombined Part = "combined"
)

// ErrNothingToExport is returned when the selected part has no notes.
var ErrNothingToExport = errors.New("no notes to export")

// ParsePart maps a query value to a Part. Empty means combined.
func ParsePart(s string) (Part, error) {
	switch Part(strings.ToLower(strings.TrimSpace(s))) {
	case "", PartCombined:
		return PartCombined, nil
	case PartChords:
		return PartChords, nil
	case PartMelody:
		return PartMelody, nil
	default:
		return "", fmt.Errorf("unknown part %q (want chords, melody or combined)", s)
	}
}

// Track is one instrument line of a file.
type Track struct {
	Name    string
	Channel uint8
	Program uint8
	Notes   []models.NoteEvent
}

// ChordTrack is the piano track for rendered chords.
func ChordTrack(notes []models.NoteEvent) Track {
	return Track{Name: "Chords", Channel: chordChannel, Program: PianoProgram, Notes: notes}
}

// MelodyTrack is the violin track for a decoded melody.
func MelodyTrack(notes []models.NoteEvent) Track {
	return Track{Name: "Melody", Channel: melodyChannel, Program: ViolinProgram, Notes: notes}
}

// Export builds the file for part. Tracks without notes are left out; if
// none remain the result is ErrNothingToExport.
func Export(part Part, chords, melody []models.NoteEvent) ([]byte, error) {
	var tracks []Track
	if part != PartMelody && len(chords) > 0 {
		tracks = append(tracks, ChordTrack(chords))
	}
	if part != PartChords && len(melody) > 0 {
		tracks = append(tracks, MelodyTrack(melody))
	}
	if len(tracks) == 0 {
		return nil, ErrNothingToExport
	}
	return Write(DefaultBPM, tracks...)
}

// Write encodes a type-1 standard MIDI file: a conductor track with tempo
// and meter followed by one track per instrument.
func Write(bpm float64, tracks ...Track) ([]byte, error) {
	if bpm <= 0 {
		bpm = DefaultBPM
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var conductor smf.Track
	conductor.Add(0, smf.MetaTempo(bpm))
	conductor.Add(0, smf.MetaMeter(4, 4))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return nil, fmt.Errorf("failed to add conductor track: %w", err)
	}

	for _, t := range tracks {
		if err := s.Add(buildTrack(t)); err != nil {
			return nil, fmt.Errorf("failed to add track %s: %w", t.Name, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode midi file: %w", err)
	}
	log.Printf("🎼 MIDI export: %d tracks, %d bytes", len(tracks), buf.Len())
	return buf.Bytes(), nil
}

type noteEdge struct {
	tick     uint32
	on       bool
	key      uint8
	velocity uint8
}

func buildTrack(t Track) smf.Track {
	edges := make([]noteEdge, 0, len(t.Notes)*2)
	for _, n := range t.Notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			log.Printf("⚠️  Dropping out-of-range pitch %d from %s track", n.Pitch, t.Name)
			continue
		}
		if n.EndTime <= n.StartTime || n.StartTime < 0 {
			log.Printf("⚠️  Dropping note with invalid timing [%g, %g) from %s track", n.StartTime, n.EndTime, t.Name)
			continue
		}
		velocity := n.Velocity
		if velocity <= 0 || velocity > 127 {
			velocity = 100
		}
		edges = append(edges,
			noteEdge{tick: toTicks(n.StartTime), on: true, key: uint8(n.Pitch), velocity: uint8(velocity)},
			noteEdge{tick: toTicks(n.EndTime), key: uint8(n.Pitch)},
		)
	}

	// note-offs sort ahead of note-ons on the same tick so repeated
	// pitches retrigger cleanly
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].tick != edges[j].tick {
			return edges[i].tick < edges[j].tick
		}
		return !edges[i].on && edges[j].on
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(t.Name))
	tr.Add(0, midi.ProgramChange(t.Channel, t.Program))

	var last uint32
	for _, e := range edges {
		delta := e.tick - last
		last = e.tick
		if e.on {
			tr.Add(delta, midi.NoteOn(t.Channel, e.key, e.velocity))
		} else {
			tr.Add(delta, midi.NoteOff(t.Channel, e.key))
		}
	}
	tr.Close(0)
	return tr
}

// toTicks converts a time in quarter-note beats to ticks.
func toTicks(beats float64) uint32 {
	return uint32(math.Round(beats * TicksPerQuarter))
}
