package schedule

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/example/call-scheduler/internal/phone"
)

const (
	ColName  = "rep_name"
	ColPhone = "phone_number"
	ColTime  = "time_of_call"
)

var columnAliases = map[string]string{
	"recipient_name": ColName,
}

// Options control how rows are interpreted. Zero values use America/Los_Angeles and +1.
type Options struct {
	Location           *time.Location
	DefaultCountryCode string
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
			o.Location = loc
		} else {
			o.Location = time.UTC
		}
	}
	if o.DefaultCountryCode == "" {
		o.DefaultCountryCode = phone.DefaultCountryCode
	}
	return o
}

// LoadFile opens path and runs Load on it.
func LoadFile(path string, opts Options) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schedule: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Load reads a CSV schedule. Any bad row rejects the whole schedule.
func Load(r io.Reader, opts Options) ([]Entry, error) {
	opts = opts.withDefaults()

	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MalformedScheduleError{Reason: "empty file"}
	}
	if err != nil {
		return nil, &MalformedScheduleError{Reason: "unreadable header", Err: err}
	}
	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var line int
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, &MalformedScheduleError{Line: line, Reason: "unreadable row", Err: err}
		}
		line, _ := cr.FieldPos(0)
		e, err := parseRow(rec, idx, line, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if canon, ok := columnAliases[h]; ok {
			h = canon
		}
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range []string{ColName, ColPhone, ColTime} {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MalformedScheduleError{
			Reason: fmt.Sprintf("missing required columns: %s (need %s, %s, %s)", strings.Join(missing, ", "), ColName, ColPhone, ColTime),
		}
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int, line int, opts Options) (Entry, error) {
	get := func(col string) (string, error) {
		v := strings.TrimSpace(rec[idx[col]])
		if v == "" {
			return "", &MalformedScheduleError{Line: line, Column: col, Reason: "empty value"}
		}
		return v, nil
	}

	name, err := get(ColName)
	if err != nil {
		return Entry{}, err
	}
	number, err := get(ColPhone)
	if err != nil {
		return Entry{}, err
	}
	rawTime, err := get(ColTime)
	if err != nil {
		return Entry{}, err
	}
	at, err := ParseCallTime(rawTime, opts.Location)
	if err != nil {
		return Entry{}, &MalformedScheduleError{
			Line:   line,
			Column: ColTime,
			Reason: fmt.Sprintf("want %q", "YYYY-MM-DD HH:MM"),
			Err:    err,
		}
	}
	return Entry{
		Name:   name,
		Phone:  phone.Normalize(number, opts.DefaultCountryCode),
		CallAt: at,
		Line:   line,
	}, nil
}
