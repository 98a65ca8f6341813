package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Conceptual-Machines/melodycomp-api/internal/app"
	"github.com/Conceptual-Machines/melodycomp-api/internal/conversation"
	"github.com/Conceptual-Machines/melodycomp-api/internal/midiexport"
	"github.com/Conceptual-Machines/melodycomp-api/internal/models"
	"github.com/spf13/cobra"
)

const cliUserID = "cli"

var chatSession string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Compose chord progressions interactively",
	Long: `Start a conversation with the composer. Each line is one turn.

Commands:
  /melody          Generate a melody over the last progression
  /midi <file>     Write the last chords and melody as a MIDI file
  /history         Show the conversation so far
  /quit            Leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := app.New(ctx, loadConfig())
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		id := chatSession
		if id == "" {
			session, err := a.Manager.Create(ctx, cliUserID)
			if err != nil {
				return err
			}
			id = session.ID
		}

		r := &repl{app: a, sessionID: id, out: cmd.OutOrStdout()}
		if err := r.restore(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.out, dimStyle.Render("session "+id+" (/quit to leave)"))
		return r.run(ctx, cmd.InOrStdin())
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Resume an existing session")
}

type repl struct {
	app       *app.App
	sessionID string
	out       io.Writer
	chords    []models.NoteEvent
	melody    []models.NoteEvent
	last      []string
}

func (r *repl) restore(ctx context.Context) error {
	session, err := r.app.Manager.Session(ctx, r.sessionID)
	if err != nil {
		return err
	}
	r.last = session.LastChords
	r.chords = session.LastNotes
	r.melody = session.LastMelody
	return nil
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, titleStyle.Render("you> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch fields := strings.Fields(line); fields[0] {
		case "/quit", "/exit":
			return nil
		case "/melody":
			err = r.generateMelody(ctx)
		case "/midi":
			if len(fields) < 2 {
				err = errors.New("usage: /midi <file>")
				break
			}
			err = r.writeMIDI(fields[1])
		case "/history":
			err = r.printHistory(ctx)
		default:
			err = r.turn(ctx, line)
		}
		if err != nil {
			fmt.Fprintln(r.out, warnStyle.Render(err.Error()))
		}
	}
}

func (r *repl) turn(ctx context.Context, utterance string) error {
	result, err := r.app.Manager.Turn(ctx, r.sessionID, utterance)
	if errors.Is(err, conversation.ErrNoProgression) {
		return errors.New(conversation.FailureMessage)
	}
	if err != nil {
		return err
	}

	if result.Key != nil {
		fmt.Fprintln(r.out, dimStyle.Render("key: "+result.Key.String()))
	}
	fmt.Fprintln(r.out, chordStyle.Render(strings.Join(result.Chords, "  ")))
	for _, d := range result.Diagnostics {
		fmt.Fprintln(r.out, warnStyle.Render(fmt.Sprintf("  %s: %s", d.Input, d.Reason)))
	}
	if result.Tips != "" {
		fmt.Fprintln(r.out, dimStyle.Render(result.Tips))
	}

	r.last = result.Chords
	r.chords = result.Notes
	r.melody = nil
	return nil
}

func (r *repl) generateMelody(ctx context.Context) error {
	if r.app.Melody == nil {
		return errors.New("melody generation is not configured (set MELODY_BASE_URL)")
	}
	result, err := r.app.Melody.Generate(ctx, r.last)
	if err != nil {
		return err
	}
	if err := r.app.Manager.SaveMelody(ctx, r.sessionID, result.Notes); err != nil {
		return err
	}
	r.melody = result.Notes

	fmt.Fprintln(r.out, dimStyle.Render("key: "+result.Key))
	fmt.Fprintln(r.out, result.ABC)
	fmt.Fprintln(r.out, chordStyle.Render(fmt.Sprintf("%d notes", len(result.Notes))))
	for _, d := range result.Diagnostics {
		fmt.Fprintln(r.out, warnStyle.Render(fmt.Sprintf("  %s: %s", d.Input, d.Reason)))
	}
	return nil
}

func (r *repl) writeMIDI(path string) error {
	data, err := midiexport.Export(midiexport.PartCombined, r.chords, r.melody)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(r.out, dimStyle.Render("wrote "+path))
	return nil
}

func (r *repl) printHistory(ctx context.Context) error {
	history, err := r.app.Manager.History(ctx, r.sessionID)
	if err != nil {
		return err
	}
	for _, msg := range history {
		fmt.Fprintf(r.out, "%s %s\n", titleStyle.Render(msg.Role+":"), msg.Content)
	}
	return nil
}
