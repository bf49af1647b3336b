package lib

import (
	"reflect"

	"github.com/wippyai/librebol"
	"github.com/wippyai/librebol/errors"
)

// Version is an entry-point table API version.
type Version struct {
	Major int
	Minor int
}

// HostVersion is the version of the table this package builds.
var HostVersion = Version{Major: librebol.MajorVersion, Minor: librebol.MinorVersion}

// Layout returns the Table field names in declaration order.
func Layout() []string {
	t := reflect.TypeOf(Table{})
	out := make([]string, t.NumField())
	for i := range out {
		out[i] = t.Field(i).Name
	}
	return out
}

// Check validates the table for an extension built against version that
// expects the given ordinal entry names. A nil names slice skips the
// layout comparison.
//
// The table is rejected when any slot is empty, when the major version
// differs, when the extension needs a newer minor version than the host
// provides, or when names disagree with the host layout.
func (t *Table) Check(version Version, names []string) error {
	if t == nil {
		return errors.Layout("nil table")
	}
	v := reflect.ValueOf(t).Elem()
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsNil() {
			return errors.Layout("entry %s (%s) is not set", entries[i].Name, entries[i].Field)
		}
	}

	if version.Major != HostVersion.Major {
		return errors.Layout("major version %d, host provides %d", version.Major, HostVersion.Major)
	}
	if version.Minor > HostVersion.Minor {
		return errors.Layout("minor version %d is newer than host %d", version.Minor, HostVersion.Minor)
	}

	if names == nil {
		return nil
	}
	if len(names) > len(entries) {
		return errors.Layout("extension expects %d entries, host has %d", len(names), len(entries))
	}
	for i, name := range names {
		if name != entries[i].Name {
			return errors.Layout("entry %d is %s, extension expects %s", i, entries[i].Name, name)
		}
	}
	return nil
}

// Names returns the ordinal C names of the first n entries, or all of them
// for n < 0.
func Names(n int) []string {
	if n < 0 || n > len(entries) {
		n = len(entries)
	}
	out := make([]string, n)
	for i := range out {
		out[i] = entries[i].Name
	}
	return out
}
