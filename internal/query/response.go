package query

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// HeaderEntry is one key/value pair of the leading header object every
// response starts with — timestamps and the axis label, always emitted
// as quoted strings (moowapp_server.cpp's stats_app_* functions print
// every header field with "%s").
type HeaderEntry struct {
	Key   string
	Value string
}

// Header is an insertion-ordered JSON object. A plain map would sort keys
// lexicographically ("10" before "2"), scrambling the numeric time axis;
// this preserves the order the handler built it in.
type Header []HeaderEntry

func (h Header) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SeriesEntry is one time-index/count pair in a result row.
type SeriesEntry struct {
	Key   string
	Value int
}

// Series is an insertion-ordered JSON object of counts, for the same
// reason as Header.
type Series []SeriesEntry

func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.Value))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Row is one named result line: [label, {index: count, ...}].
type Row struct {
	Label string
	Data  Series
}

func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{r.Label, r.Data})
}

// WithSumRow prepends a row labelled "All" holding the column-wise sum of
// every existing row, when more than one row is present — a single row's
// sum would be redundant (spec.md §4.7, "Summation row").
func WithSumRow(rows []Row) []Row {
	if len(rows) <= 1 {
		return rows
	}
	width := len(rows[0].Data)
	sums := make([]int, width)
	for _, r := range rows {
		for i, e := range r.Data {
			if i < width {
				sums[i] += e.Value
			}
		}
	}
	sumSeries := make(Series, width)
	for i, e := range rows[0].Data {
		sumSeries[i] = SeriesEntry{Key: e.Key, Value: sums[i]}
	}
	out := make([]Row, 0, len(rows)+1)
	out = append(out, Row{Label: "All", Data: sumSeries})
	out = append(out, rows...)
	return out
}

// Marshal builds the full `[{header}, [row], ...]` response body.
func Marshal(header Header, rows []Row) ([]byte, error) {
	body := make([]interface{}, 0, len(rows)+1)
	body = append(body, header)
	for _, r := range rows {
		body = append(body, r)
	}
	return json.Marshal(body)
}
