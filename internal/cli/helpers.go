package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/canvas/internal/sqlite"
	"github.com/mesh-intelligence/canvas/pkg/editor"
	"github.com/mesh-intelligence/canvas/pkg/elements"
	"github.com/mesh-intelligence/canvas/pkg/site"
	"github.com/mesh-intelligence/canvas/pkg/types"
)

// session is an attached backend with an editor on top. Callers must defer
// close.
type session struct {
	backend *sqlite.Backend
	editor  *editor.Editor
}

func (a *app) openSession() (*session, error) {
	cfg, err := a.backendConfig()
	if err != nil {
		return nil, userError(err)
	}
	logger := a.newLogger()
	backend := sqlite.NewBackend(sqlite.WithLogger(logger))
	if err := backend.Attach(cfg); err != nil {
		return nil, sysError(fmt.Errorf("attach backend: %w", err))
	}
	return &session{
		backend: backend,
		editor:  editor.New(backend, editor.WithLogger(logger)),
	}, nil
}

func (s *session) close() error {
	return s.backend.Detach()
}

// withSession runs fn against an attached session and classifies its error.
func (a *app) withSession(fn func(*session) error) (err error) {
	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = sysError(fmt.Errorf("detach backend: %w", cerr))
		}
	}()
	return classify(fn(s))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSite(w io.Writer, s types.Site) {
	state := "draft"
	if s.Published {
		state = "published"
	}
	fmt.Fprintf(w, "%s  tenant=%s  %s  %q\n", s.ID, s.TenantID, state, s.Title)
}

// printTree writes an indented outline of the site's schema.
func printTree(w io.Writer, eng *site.Engine, t *site.Tree) error {
	s := t.Site()
	printSite(w, s)
	for r := range t.RowsOf(s.ID) {
		fmt.Fprintf(w, "  row %s (order %d)\n", r.ID, r.Order)
		for c := range t.ColumnsOf(r.ID) {
			fmt.Fprintf(w, "    column %s (width %d, order %d)\n", c.ID, c.Width, c.Order)
			for e := range t.ElementsOf(c.ID) {
				props, err := eng.EffectiveProps(t, e.ID)
				if err != nil {
					return err
				}
				b, err := json.Marshal(props)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "      %s %s (order %d) %s\n", e.Type, e.ID, e.Order, b)
			}
		}
	}
	return nil
}

// parseAssignments turns key=value pairs into a partial props map. Values
// that parse as JSON keep their JSON type; anything else is a string.
// A dotted key such as socials.facebook builds a nested record.
func parseAssignments(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", types.ErrInvalidArgument, p)
		}
		var val any
		if err := json.Unmarshal([]byte(raw), &val); err != nil {
			val = raw
		}
		parts := strings.Split(key, ".")
		m := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := m[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[part] = next
			}
			m = next
		}
		m[parts[len(parts)-1]] = val
	}
	return out, nil
}

func (a *app) registry() *elements.Registry {
	return elements.Default()
}
