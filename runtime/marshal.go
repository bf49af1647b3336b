package runtime

import (
	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/scan"
	"github.com/wippyai/librebol/value"
)

// marshaller flattens an argument sequence into scanner parts.
type marshaller struct {
	rt       *Runtime
	entry    string
	parts    []scan.Part
	releases []*Handle
	ended    bool
}

func (m *marshaller) walk(args []Arg, delta int) error {
	for _, a := range args {
		if m.ended {
			return nil
		}
		switch a.kind {
		case argEnd:
			m.ended = true
			return nil

		case argSource:
			m.parts = append(m.parts, scan.Source(a.src))

		case argHandle, argRelease:
			v, err := m.rt.cell(m.entry, a.h)
			if err != nil {
				return err
			}
			if a.kind == argRelease && a.h != nil {
				m.releases = append(m.releases, a.h)
			}
			if v == nil {
				v = value.Null()
			}
			if err := m.splice(v, delta); err != nil {
				return err
			}

		case argValue:
			if err := m.splice(a.v, delta); err != nil {
				return err
			}

		case argQuote:
			if err := m.walk(a.nested, delta+a.n); err != nil {
				return err
			}

		case argUnquote:
			if err := m.walk(a.nested, delta-a.n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *marshaller) splice(v *value.Value, delta int) error {
	level := v.Quotes + delta
	if level < 0 {
		return errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Entry(m.entry).
			Want("quoted value").
			Got(v.TypeName()).
			Detail("cannot unquote %d level(s) below zero", -level).
			Build()
	}
	spliced, _ := value.Unquoted(v, v.Quotes)
	m.parts = append(m.parts, scan.Splice(value.Quoted(spliced, level)))
	return nil
}

// release destroys the handles marked with R. It runs whether or not the
// call succeeded.
func (m *marshaller) release() error {
	var first error
	for _, h := range m.releases {
		if err := m.rt.releaseSpliced(m.entry, h); err != nil && first == nil {
			first = err
		}
	}
	m.releases = nil
	return first
}

// run evaluates an argument sequence. An empty sequence produces null.
func (rt *Runtime) run(entry string, quotes int, args []Arg) (result *value.Value, err error) {
	if err := rt.enter(entry); err != nil {
		return nil, err
	}
	m := marshaller{rt: rt, entry: entry}
	defer func() {
		if rerr := m.release(); rerr != nil && err == nil {
			result, err = nil, rerr
		}
	}()

	if err := m.walk(args, quotes); err != nil {
		return nil, err
	}
	items, err := scan.Parts(m.parts)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return value.Null(), nil
	}
	return rt.interp.Do(items)
}
